package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"todoweb/internal/models"
	"todoweb/pkg/logger"
)

const (
	keyListPrefix   = "todos:owner:"
	keySearchPrefix = "todos:search:"
)

// TodoCache caches per-owner list and search results in Redis.
type TodoCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTodoCache returns a TodoCache, or nil when rdb is nil (cache disabled).
func NewTodoCache(rdb *redis.Client, ttl time.Duration) *TodoCache {
	if rdb == nil {
		return nil
	}
	return &TodoCache{rdb: rdb, ttl: ttl}
}

func listKey(ownerID int64) string {
	return keyListPrefix + strconv.FormatInt(ownerID, 10)
}

func searchKey(ownerID int64, query string) string {
	return keySearchPrefix + strconv.FormatInt(ownerID, 10) + ":" + strings.ToLower(strings.TrimSpace(query))
}

// GetList reads the owner's todo list from Redis. Returns (nil, false) on miss or error.
func (c *TodoCache) GetList(ctx context.Context, ownerID int64) ([]models.Todo, bool) {
	return c.get(ctx, listKey(ownerID))
}

// SetList writes the owner's todo list to Redis with the configured TTL.
func (c *TodoCache) SetList(ctx context.Context, ownerID int64, todos []models.Todo) {
	c.set(ctx, listKey(ownerID), todos)
}

// GetSearch reads a cached search result. Returns (nil, false) on miss or error.
func (c *TodoCache) GetSearch(ctx context.Context, ownerID int64, query string) ([]models.Todo, bool) {
	return c.get(ctx, searchKey(ownerID, query))
}

// SetSearch writes a search result to Redis with the configured TTL.
func (c *TodoCache) SetSearch(ctx context.Context, ownerID int64, query string, todos []models.Todo) {
	c.set(ctx, searchKey(ownerID, query), todos)
}

// Invalidate drops the owner's list key and every search key so the next
// read goes to the database. Called after each mutation by that owner.
func (c *TodoCache) Invalidate(ctx context.Context, ownerID int64) {
	if err := c.rdb.Del(ctx, listKey(ownerID)).Err(); err != nil {
		logger.Debug(ctx, "Redis invalidate list failed", "error", err)
	}
	pattern := keySearchPrefix + strconv.FormatInt(ownerID, 10) + ":*"
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Debug(ctx, "Redis invalidate search failed", "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		logger.Debug(ctx, "Redis scan search keys failed", "error", err)
	}
}

func (c *TodoCache) get(ctx context.Context, key string) ([]models.Todo, bool) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get failed", "error", err, "key", key)
		return nil, false
	}
	var todos []models.Todo
	if err := json.Unmarshal(b, &todos); err != nil {
		logger.Debug(ctx, "Redis unmarshal failed", "error", err, "key", key)
		return nil, false
	}
	return todos, true
}

func (c *TodoCache) set(ctx context.Context, key string, todos []models.Todo) {
	b, err := json.Marshal(todos)
	if err != nil {
		logger.Debug(ctx, "Marshal todos for cache failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logger.Debug(ctx, "Redis set failed", "error", err, "key", key)
	}
}
