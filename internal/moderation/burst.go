package moderation

import (
	"context"

	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/models"
	"github.com/guard-tgbot-go/internal/services/ai"
	"github.com/guard-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// defaultBurstFallback is sent when the generative burst call fails and no
// fallback line is configured. The burst path never stays silent once the
// threshold is reached.
const defaultBurstFallback = "Impressive output. Shame about the content."

// BurstTracker batches messages from flagged noisy senders so a spam burst
// gets one aggregated reply instead of one reply per message. State machine
// per (chat, user): empty → accumulating → flushed → empty, with the whole
// buffer expiring on TTL if a burst never completes.
type BurstTracker struct {
	ai     ai.Service
	store  *storage.Manager
	cfg    *config.ModerationConfig
	logger *logrus.Logger
}

func NewBurstTracker(aiService ai.Service, store *storage.Manager, cfg *config.ModerationConfig, logger *logrus.Logger) *BurstTracker {
	return &BurstTracker{
		ai:     aiService,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Applies reports whether the sender is routed through the burst path
// instead of the normal classification flow.
func (b *BurstTracker) Applies(userID int64) bool {
	if !b.cfg.Burst.Enabled {
		return false
	}
	for _, id := range b.cfg.NoisyUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Handle buffers one message from a flagged sender and, once the in-window
// count reaches the threshold, resolves exactly one aggregated reply
// addressed to the newest message and clears the buffer so the next message
// starts a fresh burst.
//
// The append and the read-back are two separate store calls; two concurrent
// invocations for the same pair can occasionally double- or early-flush.
// That costs one extra reply at worst and is accepted.
func (b *BurstTracker) Handle(ctx context.Context, msg models.ChatMessage) models.ReplyDecision {
	b.store.AppendBurst(ctx, msg.ChatID, msg.UserID, models.BurstEntry{
		Text:      msg.Text,
		MessageID: msg.MessageID,
		Timestamp: msg.Timestamp,
	})

	entries := b.store.Burst(ctx, msg.ChatID, msg.UserID)
	if len(entries) < b.cfg.Burst.Threshold {
		return models.NoAction(models.CategoryNone)
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	newest := entries[len(entries)-1]

	text, err := b.ai.BurstReply(ctx, msg.DisplayName, texts)
	if err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id": msg.ChatID,
			"user_id": msg.UserID,
		}).Warn("Generative burst reply failed, using fallback line")
		text = b.cfg.Burst.FallbackReply
		if text == "" {
			text = defaultBurstFallback
		}
	}

	// Unconditional clear: the flush happened, successful send or not.
	b.store.ClearBurst(ctx, msg.ChatID, msg.UserID)

	return models.ReplyDecision{
		Send:             true,
		Text:             text,
		ChatID:           msg.ChatID,
		ReplyToMessageID: newest.MessageID,
		Source:           models.SourceBurst,
	}
}
