// Package redis provides the Redis client shared by the embedding and answer caches.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	options "github.com/kart-io/sentinel-advisor/pkg/options/redis"
)

// Client wraps a go-redis client built from Options.
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

// New creates a client and verifies connectivity with a ping bounded by ctx.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolTimeout:  opts.PoolTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr(), err)
	}

	return &Client{client: rdb, opts: opts}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "redis"
}

// Ping checks if the connection to Redis is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Health pings with a short timeout. Used by the stats endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.Ping(ctx)
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client {
	return c.client
}
