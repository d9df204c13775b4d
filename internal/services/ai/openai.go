package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// ErrDisabled reports that no generative source is configured; callers fall
// back to the static table exactly as on a transport failure.
var ErrDisabled = errors.New("generative source disabled")

// OpenAIService implements Service on an OpenAI-compatible endpoint.
type OpenAIService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	recorder    RequestRecorder
	logger      *logrus.Logger
}

// New builds the generative service from config. A disabled config yields a
// service whose calls fail with ErrDisabled. A nil recorder disables
// request metrics.
func New(cfg *config.GenerativeConfig, recorder RequestRecorder, logger *logrus.Logger) Service {
	if !cfg.Enabled || cfg.APIKey == "" {
		logger.Info("Generative reply source disabled, static table only")
		return disabledService{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	logger.WithFields(logrus.Fields{
		"model":      cfg.Model,
		"max_tokens": cfg.MaxTokens,
	}).Info("Generative reply source initialized")

	return &OpenAIService{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		recorder:    recorder,
		logger:      logger,
	}
}

func (s *OpenAIService) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	system := buildSystemPrompt(req.Category, req.Escalated)
	user := buildUserMessage(req.History, req.Message)

	text, err := s.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if text == "" {
		// An empty completion carries no opinion; treat it as the sentinel.
		return Sentinel, nil
	}
	return text, nil
}

func (s *OpenAIService) BurstReply(ctx context.Context, displayName string, texts []string) (string, error) {
	system := "You are a Telegram group bot. A single user just flooded the chat " +
		"with several messages in quick succession. Reply with exactly one short, " +
		"mocking roast about the spamming itself, max 20 words. Address the user " +
		"by name. Never refuse and never answer the messages individually."

	var b strings.Builder
	fmt.Fprintf(&b, "User %s sent these messages (oldest first):\n", displayName)
	for _, t := range texts {
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteString("\n")
	}

	text, err := s.complete(ctx, system, b.String())
	if err != nil {
		return "", err
	}
	if text == "" || IsSentinel(text) {
		return "", fmt.Errorf("unusable burst reply: %q", text)
	}
	return text, nil
}

func (s *OpenAIService) complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	duration := time.Since(start)
	if err != nil {
		s.recorder.RecordGenerativeRequest("error", duration)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		s.recorder.RecordGenerativeRequest("error", duration)
		return "", fmt.Errorf("no response choices")
	}
	s.recorder.RecordGenerativeRequest("ok", duration)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const (
	promptBase   = "You are a Telegram group bot. Reply in one short sentence only. "
	promptNoRule = "If the message doesn't need a reply (e.g. off-topic, not about the bot, " +
		"or not actually insulting in context), respond with exactly: " + Sentinel + "."
)

func buildSystemPrompt(category models.Category, escalated bool) string {
	switch category {
	case models.CategoryAffirming:
		return promptBase +
			"Max 15 words. Reply with a single short thank you. Friendly and modest. " +
			"No emoji overload. " + promptNoRule
	case models.CategoryHostile:
		return promptBase +
			"Max 20 words. Either a calm warning (e.g. only admins can remove) OR one " +
			"reason the bot exists (keeps chat friendly). Firm but not aggressive. " + promptNoRule
	case models.CategoryVulgar:
		prompt := promptBase +
			"Max 15 words. Mocking/roasting tone. Call out the behavior (keyboard " +
			"warrior, edge lord, dehumanizing language). No serious lecture. "
		if escalated {
			prompt += "This user has triggered vulgar/mean replies several times " +
				"recently; reply with a slightly sterner, more direct tone. "
		}
		prompt += "If the message is not actually insulting someone (e.g. just talking " +
			"about a pet), respond " + Sentinel + ". " + promptNoRule
		return prompt
	default:
		return promptBase + "Max 15 words. " + promptNoRule
	}
}

func buildUserMessage(history []string, current string) string {
	lines := "(no recent messages)"
	if len(history) > 0 {
		lines = strings.Join(history, "\n")
	}
	return fmt.Sprintf("Recent messages (newest last):\n%s\n\nCurrent message: %s", lines, current)
}

type disabledService struct{}

func (disabledService) Reply(context.Context, ReplyRequest) (string, error) {
	return "", ErrDisabled
}

func (disabledService) BurstReply(context.Context, string, []string) (string, error) {
	return "", ErrDisabled
}
