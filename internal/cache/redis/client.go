// Package redis implements the domain cache interfaces (ETH/USD price, bet
// snapshot) over go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/duelcast/betwatch/internal/config"
)

// keyspace prefixes every key this module writes, so the caches coexist with
// other tenants on a shared Redis.
const keyspace = "betwatch:"

// key builds a namespaced cache key.
func key(parts string) string {
	return keyspace + parts
}

// Client wraps a go-redis client shared by the price and snapshot caches.
type Client struct {
	rdb *redis.Client
}

// New dials Redis from the [redis] config section and verifies connectivity
// with a ping before returning.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
