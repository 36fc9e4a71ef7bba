// Package redis implements the cache.Client interface over a Redis server
// using go-redis. It is the only place the Redis protocol appears; the sync
// layer and everything above it see the narrow Client interface.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/dispatch-api/internal/cache"
)

// Client wraps a go-redis client behind cache.Client.
type Client struct {
	rdb *redis.Client
}

// New connects to the Redis server at the given URL
// (redis://[user:pass@]host:port/db). The connection is not probed here;
// the sync layer's breaker handles an unreachable server gracefully.
func New(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Get returns the value at key, or cache.ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set stores value at key with the given TTL.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Del removes the given keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// ScanKeys returns every key matching the glob-style pattern using SCAN, so
// large keyspaces are walked without blocking the server the way KEYS
// would.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
