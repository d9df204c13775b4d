// Package moderation holds the reply decision logic: the orchestrator
// resolves one inbound message into at most one outbound reply, and the
// burst tracker batches flagged noisy senders.
package moderation

import (
	"context"

	"github.com/guard-tgbot-go/internal/classifier"
	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/models"
	"github.com/guard-tgbot-go/internal/replies"
	"github.com/guard-tgbot-go/internal/services/ai"
	"github.com/guard-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// Orchestrator resolves a classified message into a reply decision,
// cascading from the generative source to the static table. It never
// returns an error: every internal failure degrades to the static table or
// to no action.
type Orchestrator struct {
	classifier *classifier.Classifier
	table      *replies.Table
	ai         ai.Service
	store      *storage.Manager
	cfg        *config.ModerationConfig
	logger     *logrus.Logger
}

func NewOrchestrator(
	cls *classifier.Classifier,
	table *replies.Table,
	aiService ai.Service,
	store *storage.Manager,
	cfg *config.ModerationConfig,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		classifier: cls,
		table:      table,
		ai:         aiService,
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Resolve decides whether and what to reply to one inbound message. The
// noisy-sender path is not handled here; callers route flagged senders to
// the BurstTracker first.
func (o *Orchestrator) Resolve(ctx context.Context, msg models.ChatMessage) models.ReplyDecision {
	category := o.classifier.Classify(msg.Text)
	if category == models.CategoryNone {
		return models.NoAction(category)
	}

	escalated := category == models.CategoryVulgar && o.Escalated(ctx, msg.UserID)

	var history []string
	if o.cfg.History.Enabled {
		history = o.store.History(ctx, msg.ChatID)
	}

	text, err := o.ai.Reply(ctx, ai.ReplyRequest{
		Category:  category,
		History:   history,
		Message:   msg.Text,
		Escalated: escalated,
	})
	if err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id":  msg.ChatID,
			"category": category,
		}).Warn("Generative reply failed, falling back to static table")
		return o.staticFallback(msg, category)
	}

	if ai.IsSentinel(text) {
		// A generative "no opinion" is weaker evidence than a static hit:
		// an exact table phrase still earns its reply.
		return o.staticFallback(msg, category)
	}

	return models.ReplyDecision{
		Send:             true,
		Text:             text,
		ChatID:           msg.ChatID,
		ReplyToMessageID: msg.MessageID,
		Category:         category,
		Source:           models.SourceGenerative,
	}
}

// Sent applies the post-send side effects for a decision the caller
// actually delivered. The vulgar counter moves only for generative-sourced
// vulgar replies, never for static fallbacks.
func (o *Orchestrator) Sent(ctx context.Context, decision models.ReplyDecision, userID int64) {
	if !decision.Send {
		return
	}
	if decision.Category == models.CategoryVulgar && decision.Source == models.SourceGenerative {
		o.store.IncrVulgarCount(ctx, userID)
	}
}

// Escalated reports whether the sender gets the sterner tone: counter at or
// past the threshold, or membership in the configured override set.
func (o *Orchestrator) Escalated(ctx context.Context, userID int64) bool {
	esc := o.cfg.Escalation
	if !esc.Enabled {
		return false
	}
	for _, id := range esc.OverrideUserIDs {
		if id == userID {
			return true
		}
	}
	return o.store.VulgarCount(ctx, userID) >= int64(esc.Threshold)
}

func (o *Orchestrator) staticFallback(msg models.ChatMessage, category models.Category) models.ReplyDecision {
	text, ok := o.table.Lookup(msg.Text)
	if !ok {
		return models.NoAction(category)
	}
	return models.ReplyDecision{
		Send:             true,
		Text:             text,
		ChatID:           msg.ChatID,
		ReplyToMessageID: msg.MessageID,
		Category:         category,
		Source:           models.SourceStatic,
	}
}
