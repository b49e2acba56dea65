package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// addClamped adjusts one hash field and never lets it drop below zero.
var addClamped = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local next = current + tonumber(ARGV[2])
if next < 0 then
  next = 0
end
redis.call('HSET', KEYS[1], ARGV[1], next)
return next
`)

// Counter stores impressions-left per campaign in one Redis hash so that
// several processes share the same budget.
type Counter struct {
	client *redis.Client
	key    string
}

// NewCounter creates a Counter on the hash named key.
func NewCounter(client *redis.Client, key string) *Counter {
	return &Counter{client: client, key: key}
}

// Get returns the stored value and whether one exists.
func (c *Counter) Get(ctx context.Context, id string) (int, bool, error) {
	raw, err := c.client.HGet(ctx, c.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis hget %s: %w", id, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("redis value for %s: %w", id, err)
	}
	return n, true, nil
}

// Set stores n, clamped at zero.
func (c *Counter) Set(ctx context.Context, id string, n int) error {
	if err := c.client.HSet(ctx, c.key, id, max(n, 0)).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", id, err)
	}
	return nil
}

// Add adjusts the value atomically, clamping at zero.
func (c *Counter) Add(ctx context.Context, id string, delta int) (int, error) {
	n, err := addClamped.Run(ctx, c.client, []string{c.key}, id, delta).Int()
	if err != nil {
		return 0, fmt.Errorf("redis add %s: %w", id, err)
	}
	return n, nil
}

// Delete removes the values of ids.
func (c *Counter) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.HDel(ctx, c.key, ids...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}
