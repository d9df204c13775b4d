package moderation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/guard-tgbot-go/internal/classifier"
	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/models"
	"github.com/guard-tgbot-go/internal/replies"
	"github.com/guard-tgbot-go/internal/services/ai"
	"github.com/guard-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

type fakeAI struct {
	replyText  string
	replyErr   error
	burstText  string
	burstErr   error
	replyCalls int
	burstCalls int
	lastReq    ai.ReplyRequest
	lastBurst  []string
}

func (f *fakeAI) Reply(_ context.Context, req ai.ReplyRequest) (string, error) {
	f.replyCalls++
	f.lastReq = req
	return f.replyText, f.replyErr
}

func (f *fakeAI) BurstReply(_ context.Context, _ string, texts []string) (string, error) {
	f.burstCalls++
	f.lastBurst = texts
	return f.burstText, f.burstErr
}

func testConfig() *config.ModerationConfig {
	return &config.ModerationConfig{
		Phrases: config.PhrasesConfig{
			Affirming: []string{"good bot"},
			Hostile:   []string{"remove the bot"},
			Vulgar:    []string{"idiot", "fuck"},
		},
		Replies: []replies.Entry{
			{Trigger: "dog", Reply: "Hey, idiot!"},
			{Trigger: "idiot", Reply: "Look who's talking."},
		},
		NoisyUserIDs: []int64{500},
		History: config.HistoryConfig{
			Enabled: true,
			Size:    5,
			TTL:     time.Minute,
			LineCap: 200,
		},
		Burst: config.BurstConfig{
			Enabled:   true,
			Threshold: 2,
			Capacity:  10,
			TTL:       time.Minute,
		},
		Escalation: config.EscalationConfig{
			Enabled:    true,
			Threshold:  3,
			CounterTTL: time.Minute,
		},
	}
}

func newTestOrchestrator(t *testing.T, fake *fakeAI, cfg *config.ModerationConfig) (*Orchestrator, *storage.Manager) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := storage.NewManagerWithStore(storage.NewMemoryStore(cfg, time.Minute), cfg.Burst.TTL, log)
	cls := classifier.New(classifier.PhraseSets{
		Affirming: cfg.Phrases.Affirming,
		Hostile:   cfg.Phrases.Hostile,
		Vulgar:    cfg.Phrases.Vulgar,
	})
	table := replies.NewTable(cfg.Replies)
	return NewOrchestrator(cls, table, fake, store, cfg, log), store
}

func testMessage(text string) models.ChatMessage {
	return models.ChatMessage{
		ChatID:      100,
		UserID:      7,
		DisplayName: "carol",
		Text:        text,
		MessageID:   55,
		Timestamp:   time.Now(),
	}
}

func TestResolveNoCategoryNoAction(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyText: "should never be used"}
	orch, _ := newTestOrchestrator(t, fake, testConfig())

	decision := orch.Resolve(context.Background(), testMessage("just a normal sentence"))
	if decision.Send {
		t.Fatalf("expected no action, got %+v", decision)
	}
	if fake.replyCalls != 0 {
		t.Fatalf("generative source called for unclassified message")
	}
}

func TestResolveGenerativeReplyWins(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyText: "Bold words for a keyboard warrior."}
	orch, _ := newTestOrchestrator(t, fake, testConfig())

	decision := orch.Resolve(context.Background(), testMessage("you're an idiot"))
	if !decision.Send || decision.Source != models.SourceGenerative {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if decision.Text != "Bold words for a keyboard warrior." {
		t.Fatalf("text = %q", decision.Text)
	}
	if decision.ReplyToMessageID != 55 || decision.ChatID != 100 {
		t.Fatalf("reply target wrong: %+v", decision)
	}
	if decision.Category != models.CategoryVulgar {
		t.Fatalf("category = %q, want vulgar", decision.Category)
	}
}

func TestResolveFallsBackToStaticOnError(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyErr: errors.New("quota exceeded")}
	orch, store := newTestOrchestrator(t, fake, testConfig())
	ctx := context.Background()

	decision := orch.Resolve(ctx, testMessage("you're an idiot"))
	if !decision.Send || decision.Source != models.SourceStatic {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if decision.Text != "Look who's talking." {
		t.Fatalf("text = %q, want the static idiot reply", decision.Text)
	}

	// Fallback sends never move the counter.
	orch.Sent(ctx, decision, 7)
	if count := store.VulgarCount(ctx, 7); count != 0 {
		t.Fatalf("counter = %d after static fallback, want 0", count)
	}
}

func TestResolveFallsBackToStaticOnSentinel(t *testing.T) {
	t.Parallel()

	for _, sentinel := range []string{"NOREPLY", "noreply", "NoReply", " NOREPLY "} {
		fake := &fakeAI{replyText: sentinel}
		orch, _ := newTestOrchestrator(t, fake, testConfig())

		decision := orch.Resolve(context.Background(), testMessage("my dog is an idiot"))
		if !decision.Send || decision.Source != models.SourceStatic {
			t.Fatalf("sentinel %q: unexpected decision %+v", sentinel, decision)
		}
		if decision.Text != "Hey, idiot!" {
			t.Fatalf("sentinel %q: text = %q, want the dog entry", sentinel, decision.Text)
		}
	}
}

func TestResolveSentinelWithoutStaticEntryIsNoAction(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyText: ai.Sentinel}
	orch, _ := newTestOrchestrator(t, fake, testConfig())

	decision := orch.Resolve(context.Background(), testMessage("good bot"))
	if decision.Send {
		t.Fatalf("expected no action, got %+v", decision)
	}
	if decision.Category != models.CategoryAffirming {
		t.Fatalf("category = %q, want affirming", decision.Category)
	}
}

func TestResolveErrorWithoutStaticEntryIsNoAction(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyErr: errors.New("network down")}
	orch, _ := newTestOrchestrator(t, fake, testConfig())

	decision := orch.Resolve(context.Background(), testMessage("good bot"))
	if decision.Send {
		t.Fatalf("expected no action, got %+v", decision)
	}
}

func TestSentIncrementsCounterOnlyForGenerativeVulgar(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyText: "roast"}
	orch, store := newTestOrchestrator(t, fake, testConfig())
	ctx := context.Background()

	vulgar := orch.Resolve(ctx, testMessage("you're an idiot"))
	orch.Sent(ctx, vulgar, 7)
	if count := store.VulgarCount(ctx, 7); count != 1 {
		t.Fatalf("counter = %d, want 1", count)
	}

	affirming := orch.Resolve(ctx, testMessage("good bot"))
	orch.Sent(ctx, affirming, 7)
	if count := store.VulgarCount(ctx, 7); count != 1 {
		t.Fatalf("counter = %d after affirming send, want still 1", count)
	}

	// A decision that wasn't sent must not count either.
	orch.Sent(ctx, models.NoAction(models.CategoryVulgar), 7)
	if count := store.VulgarCount(ctx, 7); count != 1 {
		t.Fatalf("counter = %d after no-action, want still 1", count)
	}
}

func TestEscalationAfterThresholdSends(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyText: "roast"}
	orch, _ := newTestOrchestrator(t, fake, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if orch.Escalated(ctx, 7) {
			t.Fatalf("escalated before threshold at send %d", i)
		}
		decision := orch.Resolve(ctx, testMessage("you're an idiot"))
		orch.Sent(ctx, decision, 7)
	}

	if !orch.Escalated(ctx, 7) {
		t.Fatalf("expected escalated after 3 sent vulgar replies")
	}

	// The sterner flag reaches the prompt on the next resolve.
	orch.Resolve(ctx, testMessage("you're an idiot"))
	if !fake.lastReq.Escalated {
		t.Fatalf("escalation flag not passed to the generative request")
	}
}

func TestEscalationExpiresWithCounterTTL(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Escalation.CounterTTL = 30 * time.Millisecond
	fake := &fakeAI{replyText: "roast"}
	orch, _ := newTestOrchestrator(t, fake, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision := orch.Resolve(ctx, testMessage("you're an idiot"))
		orch.Sent(ctx, decision, 7)
	}
	if !orch.Escalated(ctx, 7) {
		t.Fatalf("expected escalated at threshold")
	}

	time.Sleep(60 * time.Millisecond)
	if orch.Escalated(ctx, 7) {
		t.Fatalf("expected escalation to lapse after counter TTL")
	}
}

func TestEscalationOverrideList(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Escalation.OverrideUserIDs = []int64{7}
	fake := &fakeAI{replyText: "roast"}
	orch, _ := newTestOrchestrator(t, fake, cfg)

	if !orch.Escalated(context.Background(), 7) {
		t.Fatalf("override-listed user must be escalated with a zero counter")
	}
	if orch.Escalated(context.Background(), 8) {
		t.Fatalf("unlisted user with zero counter must not be escalated")
	}
}

func TestResolvePassesHistoryWhenEnabled(t *testing.T) {
	t.Parallel()

	fake := &fakeAI{replyText: "roast"}
	orch, store := newTestOrchestrator(t, fake, testConfig())
	ctx := context.Background()

	store.AppendHistory(ctx, 100, "alice", "first")
	store.AppendHistory(ctx, 100, "bob", "second")

	orch.Resolve(ctx, testMessage("you're an idiot"))
	if len(fake.lastReq.History) != 2 || fake.lastReq.History[0] != "alice: first" {
		t.Fatalf("history = %v, want both lines oldest first", fake.lastReq.History)
	}
}

func TestResolveSkipsHistoryWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.History.Enabled = false
	fake := &fakeAI{replyText: "roast"}
	orch, store := newTestOrchestrator(t, fake, cfg)
	ctx := context.Background()

	store.AppendHistory(ctx, 100, "alice", "first")
	orch.Resolve(ctx, testMessage("you're an idiot"))
	if len(fake.lastReq.History) != 0 {
		t.Fatalf("history passed despite disabled flag: %v", fake.lastReq.History)
	}
}
