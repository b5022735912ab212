// Package cache holds the read-through cache for conversation summaries.
//
// The conversation list is the one view that is recomputed from the whole
// message log on every request, so it is the one view worth caching. The
// cache is keyed by user id and invalidated on every send, mark-read and
// delete touching that user; a short TTL bounds any staleness an
// invalidation misses. A nil *ConversationCache (or one built without a
// Redis client) is a valid no-op — everything still works, just without
// the cache.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type ConversationCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewConversationCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ConversationCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ConversationCache{rdb: rdb, ttl: ttl, logger: logger}
}

func key(userID uuid.UUID) string {
	return "conversations:" + userID.String()
}

// Get returns the cached summaries and whether there was a hit. Cache
// errors are logged and reported as a miss — the cache must never fail a
// request.
func (c *ConversationCache) Get(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("conversation cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var summaries []models.ConversationSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		c.logger.Debug("conversation cache decode failed", zap.Error(err))
		return nil, false
	}
	return summaries, true
}

func (c *ConversationCache) Set(ctx context.Context, userID uuid.UUID, summaries []models.ConversationSummary) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(summaries)
	if err != nil {
		c.logger.Debug("conversation cache encode failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("conversation cache set failed", zap.Error(err))
	}
}

// Invalidate drops the cached lists for every user whose conversations a
// mutation touched — both parties of a send, the recipient of a
// mark-read.
func (c *ConversationCache) Invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if c == nil || c.rdb == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = key(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug("conversation cache invalidate failed", zap.Error(err))
	}
}
