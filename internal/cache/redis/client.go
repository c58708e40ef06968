// Package redis provides the optional run lock that keeps two pipeline runs
// from updating the same watermark ledger at once.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Options converts the config into go-redis options.
func (c ClientConfig) Options() *redis.Options {
	opts := &redis.Options{
		Addr:       c.Addr,
		Password:   c.Password,
		DB:         c.DB,
		PoolSize:   c.PoolSize,
		MaxRetries: c.MaxRetries,
	}
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client wraps a go-redis Client.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and pings it.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(cfg.Options())
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

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
