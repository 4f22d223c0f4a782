// Package cache wraps the Redis-backed KV tier used to front the
// relational store for redirects (§3, Cache entry).
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "short_url:"

// DefaultTTL is the cache entry lifetime when none is supplied (§3: "TTL:
// bounded (default one day)").
const DefaultTTL = 24 * time.Hour

// ErrMiss is returned by Get when the key is absent. Absence never implies
// the mapping doesn't exist in the relational store — only that the cache
// doesn't currently hold it.
var ErrMiss = errors.New("cache: miss")

// Cache is the read-through KV tier for short-code -> URL lookups.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps an existing Redis client. ttl of zero uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the original URL cached for code, or ErrMiss if absent.
func (c *Cache) Get(ctx context.Context, code string) (string, error) {
	val, err := c.client.Get(ctx, key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache: get: %w", err)
	}
	return val, nil
}

// Set primes the cache entry for code with url under the configured TTL.
// Callers on the hot paths (C4 backfill, C5 prime) treat a failure here as
// log-only; it must never fail the surrounding request.
func (c *Cache) Set(ctx context.Context, code, url string) error {
	if err := c.client.Set(ctx, key(code), url, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

// Ping verifies connectivity, used by the /health handler.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func key(code string) string {
	return keyPrefix + code
}
