package platform

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewCacheClient creates a Redis client from the given URL. The cache is
// used for token revocation lists and rate-limit counters; neither is
// durable state, so callers should fail open rather than fail the request
// when the cache is unreachable (see internal/cache).
func NewCacheClient(ctx context.Context, cacheURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(cacheURL)
	if err != nil {
		return nil, fmt.Errorf("parsing cache URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return client, nil
}
