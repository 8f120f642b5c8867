// Package queue implements the durable invocation queue on Redis Streams.
//
// Each message carries exactly one job id. Delivery is at-least-once: a
// consumer group tracks pending entries, and entries whose consumer died are
// reclaimed after an idle threshold. Delayed delivery goes through a sorted
// set scored by ready-time that the dispatcher promotes into the stream.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultConnectTimeout = 2 * time.Second

// Client wraps a Redis client with the key layout for the invocation queue.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Config holds connection settings for the queue.
type Config struct {
	Addr     string
	Password string `json:"-"`
	DB       int
	Prefix   string
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	return NewClientFromRedis(rdb, cfg.Prefix), nil
}

// NewClientFromRedis wraps an existing Redis client. Used by tests and by
// processes that share one connection pool.
func NewClientFromRedis(rdb *redis.Client, prefix string) *Client {
	if prefix == "" {
		prefix = "discovery"
	}
	return &Client{rdb: rdb, prefix: strings.TrimSuffix(prefix, ":")}
}

// StreamKey is the ready-to-deliver invocation stream.
func (c *Client) StreamKey() string {
	return c.prefix + ":invocations"
}

// DelayedKey is the sorted set of not-yet-due invocations.
func (c *Client) DelayedKey() string {
	return c.prefix + ":invocations:delayed"
}

// Redis exposes the underlying client for shared use (metrics, health).
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CreateConsumerGroup creates the consumer group for the invocation stream
// if it does not already exist.
func (c *Client) CreateConsumerGroup(ctx context.Context, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.StreamKey(), group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// StreamLen returns the number of entries in the invocation stream.
func (c *Client) StreamLen(ctx context.Context) (int64, error) {
	return c.rdb.XLen(ctx, c.StreamKey()).Result()
}

// DelayedLen returns the number of not-yet-due invocations.
func (c *Client) DelayedLen(ctx context.Context) (int64, error) {
	return c.rdb.ZCard(ctx, c.DelayedKey()).Result()
}
