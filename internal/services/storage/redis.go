package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/guard-tgbot-go/internal/config"
	"github.com/guard-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps all cross-event state in redis lists and counters.
// Lists are newest-first on the wire (LPUSH); reads reverse them so every
// consumer sees chronological order.
type RedisStore struct {
	client     *redis.Client
	moderation *config.ModerationConfig
	logger     *logrus.Logger
}

func NewRedisStore(cfg *config.Config, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:     client,
		moderation: &cfg.Moderation,
		logger:     logger,
	}, nil
}

func historyKey(chatID int64) string { return fmt.Sprintf("chat:%d", chatID) }

func vulgarKey(userID int64) string { return fmt.Sprintf("vulgar_count:%d", userID) }

func burstKey(chatID, userID int64) string { return fmt.Sprintf("burst:%d:%d", chatID, userID) }

func (r *RedisStore) AppendHistory(ctx context.Context, chatID int64, displayName, text string) error {
	h := r.moderation.History
	key := historyKey(chatID)
	line := historyLine(displayName, text, h.LineCap)

	if err := r.client.LPush(ctx, key, line).Err(); err != nil {
		return err
	}
	if err := r.client.LTrim(ctx, key, 0, int64(h.Size-1)).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, h.TTL).Err()
}

func (r *RedisStore) History(ctx context.Context, chatID int64) ([]string, error) {
	lines, err := r.client.LRange(ctx, historyKey(chatID), 0, int64(r.moderation.History.Size-1)).Result()
	if err != nil {
		return nil, err
	}
	reverse(lines)
	return lines, nil
}

func (r *RedisStore) VulgarCount(ctx context.Context, userID int64) (int64, error) {
	val, err := r.client.Get(ctx, vulgarKey(userID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Malformed counter reads as zero rather than poisoning the flow.
		r.logger.WithField("value", val).Warn("Malformed vulgar counter, treating as 0")
		return 0, nil
	}
	return count, nil
}

func (r *RedisStore) IncrVulgarCount(ctx context.Context, userID int64) error {
	key := vulgarKey(userID)
	if err := r.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, r.moderation.Escalation.CounterTTL).Err()
}

func (r *RedisStore) AppendBurst(ctx context.Context, chatID, userID int64, entry models.BurstEntry) error {
	b := r.moderation.Burst
	key := burstKey(chatID, userID)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := r.client.LPush(ctx, key, data).Err(); err != nil {
		return err
	}
	if err := r.client.LTrim(ctx, key, 0, int64(b.Capacity-1)).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, b.TTL).Err()
}

func (r *RedisStore) Burst(ctx context.Context, chatID, userID int64) ([]models.BurstEntry, error) {
	raw, err := r.client.LRange(ctx, burstKey(chatID, userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.BurstEntry, 0, len(raw))
	// Newest-first in redis; walk backwards for chronological order.
	for i := len(raw) - 1; i >= 0; i-- {
		var entry models.BurstEntry
		if err := json.Unmarshal([]byte(raw[i]), &entry); err != nil {
			r.logger.WithError(err).Warn("Skipping malformed burst entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RedisStore) ClearBurst(ctx context.Context, chatID, userID int64) error {
	return r.client.Del(ctx, burstKey(chatID, userID)).Err()
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
