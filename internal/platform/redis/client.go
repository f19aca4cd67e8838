// Package redis opens the shared Redis connection used for the reconciliation
// lease and the last-report cache.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"roster/internal/platform/config"
)

// ErrNotConfigured is returned by Open when no Redis URL is set.
var ErrNotConfigured = errors.New("redis not configured")

// Client is a go-redis client that also carries the deployment's key prefix.
type Client struct {
	*redis.Client
	prefix string
}

// Open connects and pings. Callers fall back to process-local coordination on
// ErrNotConfigured.
func Open(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client, prefix: cfg.KeyPrefix}, nil
}

// Prefix is prepended to every key this service writes.
func (c *Client) Prefix() string {
	return c.prefix
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
