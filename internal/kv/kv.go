// Package kv is the key-value cache boundary used by the ambient-context
// jobs. Values are ephemeral by design: every write carries a TTL a bit
// longer than the producing job's cadence, so a stalled producer ages out
// of the downstream prompt instead of serving stale context forever.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the cache connection configuration.
type Config struct {
	// URL is a redis connection URL (redis://host:port/db).
	URL string `yaml:"url"`
}

// Cache wraps the redis client.
type Cache struct {
	client *redis.Client
}

// Open parses the connection URL and creates the client. The connection
// itself is established lazily on first use.
func Open(cfg Config) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("kv: parse url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts)}, nil
}

// Ping verifies the connection.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("kv: ping: %w", err)
	}
	return nil
}

// SetWithExpiry stores one value under key with the given TTL.
func (c *Cache) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}

// SetAll stores every entry with the same TTL in one transactional
// pipeline, so readers never observe a mix of this cycle's and last
// cycle's fields.
func (c *Cache) SetAll(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, key, value, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv: set batch of %d: %w", len(entries), err)
	}
	return nil
}

// Get returns the value under key. ok is false when the key is absent or
// expired.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return value, true, nil
}

// Close releases the client's resources.
func (c *Cache) Close() error {
	return c.client.Close()
}
