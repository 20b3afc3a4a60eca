package teamup

import (
	"context"
	"encoding/json"
	"fmt"

	"glamora/internal/metrics"
)

type freshKey struct{}

// Fresh marks ctx so listings bypass the cache. Conflict checks read through
// it to see writes made moments ago by other instances.
func Fresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

func isFresh(ctx context.Context) bool {
	v, _ := ctx.Value(freshKey{}).(bool)
	return v
}

func (c *Client) eventsKey(query string) string {
	return fmt.Sprintf("teamup:events:%s:%s", c.calendarKey, query)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		metrics.IncCache("miss")
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		metrics.IncCache("corrupt")
		return false
	}
	metrics.IncCache("hit")
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// invalidateEvents drops every cached event listing of this calendar.
func (c *Client) invalidateEvents(ctx context.Context) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	iter := c.redis.Scan(ctx, 0, c.eventsKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Msg("scan cached listings")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Int("keys", len(keys)).Msg("invalidate cached listings")
	}
}
