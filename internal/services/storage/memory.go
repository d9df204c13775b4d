package storage

import (
	"context"
	"time"

	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/models"
	"github.com/patrickmn/go-cache"
)

// MemoryStore mirrors the redis semantics on go-cache for redis-less
// deployments and tests. The read-modify-write sequences are not atomic,
// same as the two-call redis idiom; an occasional lost append under heavy
// concurrency is accepted.
type MemoryStore struct {
	histories *cache.Cache
	counters  *cache.Cache
	bursts    *cache.Cache
	cfg       *config.ModerationConfig
}

func NewMemoryStore(cfg *config.ModerationConfig, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		histories: cache.New(cfg.History.TTL, cleanupInterval),
		counters:  cache.New(cfg.Escalation.CounterTTL, cleanupInterval),
		bursts:    cache.New(cfg.Burst.TTL, cleanupInterval),
		cfg:       cfg,
	}
}

func (m *MemoryStore) AppendHistory(ctx context.Context, chatID int64, displayName, text string) error {
	key := historyKey(chatID)
	line := historyLine(displayName, text, m.cfg.History.LineCap)

	var lines []string
	if val, found := m.histories.Get(key); found {
		lines = val.([]string)
	}
	lines = append(lines, line)
	if excess := len(lines) - m.cfg.History.Size; excess > 0 {
		lines = lines[excess:]
	}
	// Set refreshes the TTL, matching EXPIRE on every append.
	m.histories.Set(key, lines, m.cfg.History.TTL)
	return nil
}

func (m *MemoryStore) History(ctx context.Context, chatID int64) ([]string, error) {
	val, found := m.histories.Get(historyKey(chatID))
	if !found {
		return nil, nil
	}
	lines := val.([]string)
	out := make([]string, len(lines))
	copy(out, lines)
	return out, nil
}

func (m *MemoryStore) VulgarCount(ctx context.Context, userID int64) (int64, error) {
	val, found := m.counters.Get(vulgarKey(userID))
	if !found {
		return 0, nil
	}
	return val.(int64), nil
}

func (m *MemoryStore) IncrVulgarCount(ctx context.Context, userID int64) error {
	key := vulgarKey(userID)
	count, _ := m.VulgarCount(ctx, userID)
	m.counters.Set(key, count+1, m.cfg.Escalation.CounterTTL)
	return nil
}

func (m *MemoryStore) AppendBurst(ctx context.Context, chatID, userID int64, entry models.BurstEntry) error {
	key := burstKey(chatID, userID)

	var entries []models.BurstEntry
	if val, found := m.bursts.Get(key); found {
		entries = val.([]models.BurstEntry)
	}
	entries = append(entries, entry)
	if excess := len(entries) - m.cfg.Burst.Capacity; excess > 0 {
		entries = entries[excess:]
	}
	m.bursts.Set(key, entries, m.cfg.Burst.TTL)
	return nil
}

func (m *MemoryStore) Burst(ctx context.Context, chatID, userID int64) ([]models.BurstEntry, error) {
	val, found := m.bursts.Get(burstKey(chatID, userID))
	if !found {
		return nil, nil
	}
	entries := val.([]models.BurstEntry)
	out := make([]models.BurstEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemoryStore) ClearBurst(ctx context.Context, chatID, userID int64) error {
	m.bursts.Delete(burstKey(chatID, userID))
	return nil
}
