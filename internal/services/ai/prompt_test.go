package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/guard-tgbot-go/internal/models"
)

func TestIsSentinel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"NOREPLY", true},
		{"noreply", true},
		{"NoReply", true},
		{"  NOREPLY  ", true},
		{"NOREPLY.", false},
		{"no reply", false},
		{"", false},
		{"something else", false},
	}
	for _, tt := range tests {
		if got := IsSentinel(tt.input); got != tt.want {
			t.Fatalf("IsSentinel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		category  models.Category
		escalated bool
		contains  []string
		excludes  []string
	}{
		{
			name:     "affirming",
			category: models.CategoryAffirming,
			contains: []string{"thank you", Sentinel},
		},
		{
			name:     "hostile",
			category: models.CategoryHostile,
			contains: []string{"calm warning", Sentinel},
		},
		{
			name:     "vulgar",
			category: models.CategoryVulgar,
			contains: []string{"Mocking/roasting", Sentinel},
			excludes: []string{"sterner"},
		},
		{
			name:      "vulgar escalated",
			category:  models.CategoryVulgar,
			escalated: true,
			contains:  []string{"sterner"},
		},
		{
			name:     "bot identity falls through to generic",
			category: models.CategoryBotIdentity,
			contains: []string{"Max 15 words", Sentinel},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prompt := buildSystemPrompt(tt.category, tt.escalated)
			for _, want := range tt.contains {
				if !strings.Contains(prompt, want) {
					t.Fatalf("prompt missing %q: %s", want, prompt)
				}
			}
			for _, nope := range tt.excludes {
				if strings.Contains(prompt, nope) {
					t.Fatalf("prompt unexpectedly contains %q: %s", nope, prompt)
				}
			}
		})
	}
}

func TestBuildUserMessage(t *testing.T) {
	t.Parallel()

	got := buildUserMessage(nil, "hello")
	if !strings.Contains(got, "(no recent messages)") || !strings.Contains(got, "Current message: hello") {
		t.Fatalf("unexpected message without history: %s", got)
	}

	got = buildUserMessage([]string{"alice: hi", "bob: yo"}, "sup")
	if !strings.Contains(got, "alice: hi\nbob: yo") {
		t.Fatalf("history lines not joined newest-last: %s", got)
	}
}

func TestDisabledService(t *testing.T) {
	t.Parallel()

	svc := disabledService{}
	ctx := context.Background()
	if _, err := svc.Reply(ctx, ReplyRequest{}); err != ErrDisabled {
		t.Fatalf("Reply err = %v, want ErrDisabled", err)
	}
	if _, err := svc.BurstReply(ctx, "x", nil); err != ErrDisabled {
		t.Fatalf("BurstReply err = %v, want ErrDisabled", err)
	}
}
