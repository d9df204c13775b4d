package storage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Store is the narrow key-value contract the moderation core needs:
// a push-and-trim history list, a TTL'd integer counter and a TTL'd burst
// buffer, all per chat/user.
type Store interface {
	// AppendHistory records one "name: text" line for a chat, trimmed to the
	// configured window size, refreshing the window TTL.
	AppendHistory(ctx context.Context, chatID int64, displayName, text string) error
	// History returns the chat's recent lines oldest-first.
	History(ctx context.Context, chatID int64) ([]string, error)

	// VulgarCount returns the user's current vulgar-reply count (0 when
	// absent or expired).
	VulgarCount(ctx context.Context, userID int64) (int64, error)
	// IncrVulgarCount bumps the counter and refreshes its TTL.
	IncrVulgarCount(ctx context.Context, userID int64) error

	// AppendBurst buffers one message from a flagged noisy sender,
	// refreshing the buffer TTL. Capacity overflow evicts oldest entries.
	AppendBurst(ctx context.Context, chatID, userID int64, entry models.BurstEntry) error
	// Burst returns the buffered entries oldest-first. Malformed entries
	// are skipped, not surfaced as errors.
	Burst(ctx context.Context, chatID, userID int64) ([]models.BurstEntry, error)
	// ClearBurst drops the whole buffer.
	ClearBurst(ctx context.Context, chatID, userID int64) error
}

// OperationRecorder receives the outcome of every backing store call.
// *middleware.Metrics satisfies it.
type OperationRecorder interface {
	RecordStorageOperation(operation, status string)
}

type noopRecorder struct{}

func (noopRecorder) RecordStorageOperation(string, string) {}

// Manager fronts a Store backend and enforces the degradation policy: no
// store operation ever fails the caller. Errors are logged and turn into
// empty results, so the bot keeps working in stateless mode when redis is
// down or not configured at all.
type Manager struct {
	store    Store
	burstTTL time.Duration
	recorder OperationRecorder
	logger   *logrus.Logger
	now      func() time.Time
}

// NewManager picks the backend from config. "disabled" is a valid choice
// and yields a store that answers empty to everything. A nil recorder
// disables operation metrics.
func NewManager(cfg *config.Config, recorder OperationRecorder, logger *logrus.Logger) (*Manager, error) {
	var store Store
	var err error

	switch cfg.Storage.Type {
	case "redis":
		store, err = NewRedisStore(cfg, logger)
		if err != nil {
			return nil, err
		}
	case "memory":
		store = NewMemoryStore(&cfg.Moderation, cfg.Storage.Memory.CleanupInterval)
	case "disabled":
		store = DisabledStore{}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Manager{
		store:    store,
		burstTTL: cfg.Moderation.Burst.TTL,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// NewManagerWithStore wraps an already-built backend; used by tests and by
// callers that construct the redis client themselves.
func NewManagerWithStore(store Store, burstTTL time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{store: store, burstTTL: burstTTL, recorder: noopRecorder{}, logger: logger, now: time.Now}
}

func (m *Manager) record(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.recorder.RecordStorageOperation(operation, status)
}

func (m *Manager) AppendHistory(ctx context.Context, chatID int64, displayName, text string) {
	err := m.store.AppendHistory(ctx, chatID, displayName, text)
	m.record("append_history", err)
	if err != nil {
		m.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to append chat history")
	}
}

func (m *Manager) History(ctx context.Context, chatID int64) []string {
	lines, err := m.store.History(ctx, chatID)
	m.record("read_history", err)
	if err != nil {
		m.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to read chat history")
		return nil
	}
	return lines
}

func (m *Manager) VulgarCount(ctx context.Context, userID int64) int64 {
	count, err := m.store.VulgarCount(ctx, userID)
	m.record("read_vulgar_count", err)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Warn("Failed to read vulgar count")
		return 0
	}
	return count
}

func (m *Manager) IncrVulgarCount(ctx context.Context, userID int64) {
	err := m.store.IncrVulgarCount(ctx, userID)
	m.record("incr_vulgar_count", err)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Warn("Failed to increment vulgar count")
	}
}

func (m *Manager) AppendBurst(ctx context.Context, chatID, userID int64, entry models.BurstEntry) {
	err := m.store.AppendBurst(ctx, chatID, userID, entry)
	m.record("append_burst", err)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id": chatID,
			"user_id": userID,
		}).Warn("Failed to append burst entry")
	}
}

// Burst reads the buffer oldest-first and drops entries older than the
// burst TTL. The store key expires wholesale too, but the per-entry filter
// keeps a refreshed buffer from resurrecting stale messages.
func (m *Manager) Burst(ctx context.Context, chatID, userID int64) []models.BurstEntry {
	entries, err := m.store.Burst(ctx, chatID, userID)
	m.record("read_burst", err)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id": chatID,
			"user_id": userID,
		}).Warn("Failed to read burst buffer")
		return nil
	}

	cutoff := m.now().Add(-m.burstTTL)
	fresh := entries[:0]
	for _, e := range entries {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		fresh = append(fresh, e)
	}
	return fresh
}

func (m *Manager) ClearBurst(ctx context.Context, chatID, userID int64) {
	err := m.store.ClearBurst(ctx, chatID, userID)
	m.record("clear_burst", err)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id": chatID,
			"user_id": userID,
		}).Warn("Failed to clear burst buffer")
	}
}

// DisabledStore is the stateless-mode backend: classification and static
// fallback still work, everything stateful reads back empty.
type DisabledStore struct{}

func (DisabledStore) AppendHistory(context.Context, int64, string, string) error { return nil }
func (DisabledStore) History(context.Context, int64) ([]string, error)           { return nil, nil }
func (DisabledStore) VulgarCount(context.Context, int64) (int64, error)          { return 0, nil }
func (DisabledStore) IncrVulgarCount(context.Context, int64) error               { return nil }
func (DisabledStore) AppendBurst(context.Context, int64, int64, models.BurstEntry) error {
	return nil
}
func (DisabledStore) Burst(context.Context, int64, int64) ([]models.BurstEntry, error) {
	return nil, nil
}
func (DisabledStore) ClearBurst(context.Context, int64, int64) error { return nil }

// historyLine formats one history entry the way prompts consume it,
// truncated so a single long message cannot dominate the window. The cap
// counts bytes but the cut never splits a rune.
func historyLine(displayName, text string, lineCap int) string {
	if displayName == "" {
		displayName = "?"
	}
	if lineCap > 0 && len(text) > lineCap {
		cut := lineCap
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return fmt.Sprintf("%s: %s", displayName, text)
}
