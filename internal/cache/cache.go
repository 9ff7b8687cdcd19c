// Package cache wraps the Redis KV store used for token revocation lists
// and rate-limit counters. Neither is durable state: a cache outage should
// degrade the feature it backs (e.g. skip a revocation check) rather than
// fail the request. The read helpers Exists and GetTime fail open: they log
// a cache error and report the key as absent. Set, Delete, Incr and TTL
// return the error to the caller, which decides how to degrade (the rate
// limiter middleware lets the request through).
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client with fail-open helpers.
type Cache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New wraps an existing Redis client.
func New(rdb *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{rdb: rdb, logger: logger}
}

// Set stores value under key with the given TTL. A TTL of zero means no
// expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Exists reports whether key is present. On a cache error it fails open
// (returns false, nil) so a revocation-list outage does not lock every
// session out; the error is logged for visibility.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Warn("cache exists check failed, failing open", "key", key, "error", err)
		return false, nil
	}
	return n > 0, nil
}

// GetTime returns the time stored at key, or the zero time if the key is
// absent. Used for the "revoked since" timestamp written by
// invalidate-all-sessions.
func (c *Cache) GetTime(ctx context.Context, key string) (time.Time, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		c.logger.Warn("cache get failed, failing open", "key", key, "error", err)
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Incr increments key and sets ttl if this is the first increment,
// returning the post-increment count. Used by the rate limiter.
func (c *Cache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// TTL returns the remaining time-to-live for key.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.rdb.TTL(ctx, key).Result()
}
