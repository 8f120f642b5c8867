package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultConsumerGroup = "discovery-workers"
	defaultBlockTimeout  = 5 * time.Second
	defaultBatchSize     = 10
	defaultClaimMinIdle  = 2 * time.Minute
	maxPendingCheck      = 100
)

// Message is one invocation read from the queue.
type Message struct {
	ID         string
	JobID      string
	EnqueuedAt time.Time

	// Deliveries counts how many times this message has been handed to a
	// consumer, including this delivery. Reclaimed entries carry the
	// pending-entry retry count; fresh reads are delivery one.
	Deliveries int64
}

// Consumer reads invocations through a consumer group so unacknowledged
// messages survive worker crashes and are redelivered.
type Consumer struct {
	client       *Client
	group        string
	consumerID   string
	blockTimeout time.Duration
	batchSize    int64
	claimMinIdle time.Duration
}

// ConsumerConfig holds consumer options.
type ConsumerConfig struct {
	Group        string
	ConsumerID   string
	BlockTimeout time.Duration
	BatchSize    int64
	ClaimMinIdle time.Duration
}

// NewConsumer creates a Consumer. ConsumerID must be unique per process.
func NewConsumer(client *Client, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}

	group := cfg.Group
	if group == "" {
		group = defaultConsumerGroup
	}
	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	return &Consumer{
		client:       client,
		group:        group,
		consumerID:   cfg.ConsumerID,
		blockTimeout: blockTimeout,
		batchSize:    batchSize,
		claimMinIdle: claimMinIdle,
	}, nil
}

// Initialize creates the consumer group.
func (c *Consumer) Initialize(ctx context.Context) error {
	return c.client.CreateConsumerGroup(ctx, c.group)
}

// Read returns the next batch of invocations. Stale pending entries from
// dead consumers are reclaimed first; otherwise the call blocks up to the
// block timeout waiting for new messages. A nil, nil return means no work.
func (c *Consumer) Read(ctx context.Context) ([]Message, error) {
	if reclaimed := c.reclaimStale(ctx); len(reclaimed) > 0 {
		return reclaimed, nil
	}

	streams, err := c.client.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumerID,
		Streams:  []string{c.client.StreamKey(), ">"},
		Count:    c.batchSize,
		Block:    c.blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read invocations: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg, ok := parseMessage(raw, 1)
			if !ok {
				// Malformed entry: acknowledge so it cannot wedge the group.
				_ = c.Ack(ctx, raw.ID)
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// Ack acknowledges a processed invocation.
func (c *Consumer) Ack(ctx context.Context, messageID string) error {
	return c.client.rdb.XAck(ctx, c.client.StreamKey(), c.group, messageID).Err()
}

// PendingCount returns the number of delivered-but-unacknowledged messages.
func (c *Consumer) PendingCount(ctx context.Context) (int64, error) {
	pending, err := c.client.rdb.XPending(ctx, c.client.StreamKey(), c.group).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return pending.Count, nil
}

// reclaimStale claims pending entries whose consumer has been idle past the
// threshold. Errors here are soft: the next Read pass retries.
func (c *Consumer) reclaimStale(ctx context.Context) []Message {
	pending, err := c.client.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.client.StreamKey(),
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  maxPendingCheck,
	}).Result()
	if err != nil || len(pending) == 0 {
		return nil
	}

	deliveries := make(map[string]int64, len(pending))
	var stale []string
	for _, entry := range pending {
		if entry.Idle >= c.claimMinIdle {
			stale = append(stale, entry.ID)
			deliveries[entry.ID] = entry.RetryCount
		}
	}
	if len(stale) == 0 {
		return nil
	}

	claimed, err := c.client.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.client.StreamKey(),
		Group:    c.group,
		Consumer: c.consumerID,
		MinIdle:  c.claimMinIdle,
		Messages: stale,
	}).Result()
	if err != nil {
		return nil
	}

	var messages []Message
	for _, raw := range claimed {
		msg, ok := parseMessage(raw, deliveries[raw.ID])
		if !ok {
			_ = c.Ack(ctx, raw.ID)
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

func parseMessage(raw redis.XMessage, deliveries int64) (Message, bool) {
	jobID, ok := raw.Values[jobIDField].(string)
	if !ok || jobID == "" {
		return Message{}, false
	}

	msg := Message{ID: raw.ID, JobID: jobID, Deliveries: deliveries}
	if msg.Deliveries < 1 {
		msg.Deliveries = 1
	}
	if ts, hasTS := raw.Values[enqueuedAtField].(string); hasTS {
		if t, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
			msg.EnqueuedAt = t
		}
	}
	return msg, true
}
