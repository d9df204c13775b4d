// Package ai is the generative reply source. It speaks to any
// OpenAI-compatible chat-completions endpoint and carries the per-category
// tone instructions. Callers treat it as opaque: prompt in, text or the
// no-reply sentinel out, and it may fail.
package ai

import (
	"context"
	"strings"
	"time"

	"github.com/guard-tgbot-go/internal/models"
)

// Sentinel is the reserved reply meaning "no reply warranted". The model is
// instructed to answer with it verbatim; comparison is case-insensitive.
const Sentinel = "NOREPLY"

// IsSentinel reports whether a model reply is the no-reply sentinel.
func IsSentinel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), Sentinel)
}

// ReplyRequest carries everything the prompt builder needs for one reply.
type ReplyRequest struct {
	Category models.Category
	// History is the chat window, oldest first, "name: text" lines. May be
	// empty when the store is down or history is disabled.
	History []string
	Message string
	// Escalated selects the sterner wording for repeat vulgar offenders.
	Escalated bool
}

// RequestRecorder receives the outcome and latency of every completion
// call. *middleware.Metrics satisfies it.
type RequestRecorder interface {
	RecordGenerativeRequest(status string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordGenerativeRequest(string, time.Duration) {}

// Service is the generative reply source contract.
type Service interface {
	// Reply returns the model's reply text, which may be the Sentinel.
	Reply(ctx context.Context, req ReplyRequest) (string, error)
	// BurstReply answers one aggregated burst of messages from a noisy
	// sender. It never returns the sentinel: an unusable model answer is an
	// error so the caller can fall back to its fixed line.
	BurstReply(ctx context.Context, displayName string, texts []string) (string, error)
}
