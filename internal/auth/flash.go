package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"todoweb/internal/models"
	"todoweb/pkg/logger"
)

const flashKeyPrefix = "flash:"

// FlashStore queues one-shot messages per session, consumed on the next render.
type FlashStore interface {
	Push(ctx context.Context, sessionID string, f models.Flash)
	Pop(ctx context.Context, sessionID string) []models.Flash
}

// RedisFlashStore keeps flash queues in Redis lists keyed by session ID.
type RedisFlashStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisFlashStore returns a flash store backed by Redis.
func NewRedisFlashStore(rdb *redis.Client, ttl time.Duration) *RedisFlashStore {
	return &RedisFlashStore{rdb: rdb, ttl: ttl}
}

// Push appends a flash to the session's queue. Failures are logged and
// dropped; a lost flash never fails the request.
func (s *RedisFlashStore) Push(ctx context.Context, sessionID string, f models.Flash) {
	if sessionID == "" {
		return
	}
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	key := flashKeyPrefix + sessionID
	if err := s.rdb.RPush(ctx, key, b).Err(); err != nil {
		logger.Debug(ctx, "Flash push failed", "error", err)
		return
	}
	_ = s.rdb.Expire(ctx, key, s.ttl).Err()
}

// Pop drains and returns the session's queued flashes.
func (s *RedisFlashStore) Pop(ctx context.Context, sessionID string) []models.Flash {
	if sessionID == "" {
		return nil
	}
	key := flashKeyPrefix + sessionID
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil
	}
	_ = s.rdb.Del(ctx, key).Err()
	flashes := make([]models.Flash, 0, len(raw))
	for _, item := range raw {
		var f models.Flash
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			continue
		}
		flashes = append(flashes, f)
	}
	return flashes
}
