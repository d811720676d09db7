package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/case-workflow-service/internal/domain"
)

// WorkQueueCache is a short-TTL Redis cache for work-queue pages. The work
// queue view tolerates staleness, so reads may be served from cache while the
// underlying queue moves on. A nil cache is a valid no-op.
type WorkQueueCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewWorkQueueCache builds a cache around an existing Redis client.
func NewWorkQueueCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *WorkQueueCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &WorkQueueCache{client: client, ttl: ttl, logger: logger}
}

// Key derives the cache key for one work-queue page.
func Key(lob *string, limit, offset int) string {
	scope := "all"
	if lob != nil {
		scope = *lob
	}
	return fmt.Sprintf("workqueue:%s:%d:%d", scope, limit, offset)
}

// Get returns a cached page if present.
func (c *WorkQueueCache) Get(ctx context.Context, key string) ([]domain.Case, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var cases []domain.Case
	if err := json.Unmarshal(raw, &cases); err != nil {
		c.logger.Warn("corrupt work queue cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return cases, true
}

// Set stores a page with the configured TTL. Failures are logged, never fatal.
func (c *WorkQueueCache) Set(ctx context.Context, key string, cases []domain.Case) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(cases)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("work queue cache write failed", zap.String("key", key), zap.Error(err))
	}
}
