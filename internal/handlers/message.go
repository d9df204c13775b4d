// Package handlers connects Telegram updates to the moderation core.
package handlers

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/middleware"
	"github.com/guard-tgbot-go/internal/models"
	"github.com/guard-tgbot-go/internal/moderation"
	"github.com/guard-tgbot-go/internal/services/storage"
	"github.com/guard-tgbot-go/pkg/logger"
	"github.com/guard-tgbot-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// Sender is the outbound slice of the Telegram API the handler needs.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// MessageHandler filters inbound events, routes them through the burst
// path or the orchestrator, and dispatches at most one reply per event.
type MessageHandler struct {
	config       *config.Config
	bot          Sender
	orchestrator *moderation.Orchestrator
	burst        *moderation.BurstTracker
	storage      *storage.Manager
	rateLimiter  middleware.RateLimiter
	metrics      *middleware.Metrics
	logger       *logrus.Logger
}

func NewMessageHandler(
	cfg *config.Config,
	bot Sender,
	orchestrator *moderation.Orchestrator,
	burst *moderation.BurstTracker,
	storage *storage.Manager,
	rateLimiter middleware.RateLimiter,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		config:       cfg,
		bot:          bot,
		orchestrator: orchestrator,
		burst:        burst,
		storage:      storage,
		rateLimiter:  rateLimiter,
		metrics:      metrics,
		logger:       logger,
	}
}

// HandleMessage processes one inbound update. Malformed events and
// internal failures short-circuit to "no action"; nothing here may break
// the transport acknowledgement, so only outbound send failures surface,
// and only so the caller can log them.
func (h *MessageHandler) HandleMessage(ctx context.Context, update *tgbotapi.Update) error {
	message := update.Message
	if message == nil || message.IsCommand() {
		return nil
	}
	if message.Text == "" {
		h.metrics.RecordMessageIgnored("no_text")
		return nil
	}
	if message.Chat == nil {
		h.metrics.RecordMessageIgnored("no_chat")
		return nil
	}
	if message.From == nil {
		h.metrics.RecordMessageIgnored("no_sender")
		return nil
	}
	if message.From.IsBot {
		h.metrics.RecordMessageIgnored("bot_sender")
		return nil
	}

	msg := fromTelegram(message)

	log := logger.WithMessage(h.logger, msg.ChatID, msg.UserID, msg.MessageID)

	if h.config.Moderation.History.Enabled {
		h.storage.AppendHistory(ctx, msg.ChatID, msg.DisplayName, msg.Text)
	}

	var decision models.ReplyDecision
	if h.burst.Applies(msg.UserID) {
		// Flagged noisy senders route entirely through batching; their
		// messages are never classified individually.
		decision = h.burst.Handle(ctx, msg)
		if decision.Send {
			h.metrics.RecordBurstFlush()
		}
	} else {
		decision = h.orchestrator.Resolve(ctx, msg)
		h.metrics.RecordClassification(string(decision.Category))
	}

	if !decision.Send {
		log.WithField("category", decision.Category).Debug("No reply warranted")
		return nil
	}

	if !h.rateLimiter.Allow(msg.UserID) {
		h.metrics.RecordReplySuppressed("rate_limited")
		return nil
	}

	if err := h.sendReply(decision); err != nil {
		log.WithError(err).Error("Failed to send reply")
		return err
	}

	h.orchestrator.Sent(ctx, decision, msg.UserID)
	h.metrics.RecordReplySent(string(decision.Source))
	log.WithFields(logrus.Fields{
		"category": decision.Category,
		"source":   decision.Source,
	}).Info("Reply sent")

	return nil
}

// sendReply delivers the decision as an HTML message, retrying once as
// plain text when Telegram rejects the markup.
func (h *MessageHandler) sendReply(decision models.ReplyDecision) error {
	reply := tgbotapi.NewMessage(decision.ChatID, markdown.ToTelegramHTML(decision.Text))
	reply.ReplyToMessageID = decision.ReplyToMessageID
	reply.ParseMode = "HTML"

	if _, err := h.bot.Send(reply); err == nil {
		return nil
	}

	reply.ParseMode = ""
	reply.Text = decision.Text
	_, err := h.bot.Send(reply)
	return err
}

func fromTelegram(message *tgbotapi.Message) models.ChatMessage {
	displayName := message.From.UserName
	if displayName == "" {
		displayName = message.From.FirstName
	}
	ts := time.Now()
	if message.Date != 0 {
		ts = time.Unix(int64(message.Date), 0)
	}
	return models.ChatMessage{
		ChatID:      message.Chat.ID,
		UserID:      message.From.ID,
		DisplayName: displayName,
		Text:        message.Text,
		MessageID:   message.MessageID,
		IsBot:       message.From.IsBot,
		Timestamp:   ts,
	}
}
