package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chatrelay/internal/core/domain"
)

// HistoryCache fronts the message store's recent-window query. Redis is
// never the authority: any backend error is logged and reported as a
// miss so the caller falls through to Postgres.
type HistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewHistoryCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *HistoryCache {
	return &HistoryCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *HistoryCache) key(room string) string {
	return "history:" + room
}

func (c *HistoryCache) Get(ctx context.Context, room string) ([]domain.Message, bool) {
	raw, err := c.rdb.Get(ctx, c.key(room)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("history cache - get failed", "room", room, "err", err)
		return nil, false
	}
	var msgs []domain.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		c.log.Warn("history cache - corrupt entry dropped", "room", room, "err", err)
		c.Invalidate(ctx, room)
		return nil, false
	}
	return msgs, true
}

func (c *HistoryCache) Set(ctx context.Context, room string, msgs []domain.Message) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(room), raw, c.ttl).Err(); err != nil {
		c.log.Warn("history cache - set failed", "room", room, "err", err)
	}
}

func (c *HistoryCache) Invalidate(ctx context.Context, room string) {
	if err := c.rdb.Del(ctx, c.key(room)).Err(); err != nil {
		c.log.Warn("history cache - invalidate failed", "room", room, "err", err)
	}
}
