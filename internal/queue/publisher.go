package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// jobIDField is the stream field carrying the job id payload.
	jobIDField = "job_id"

	// enqueuedAtField records when the message entered the queue.
	enqueuedAtField = "enqueued_at"

	// defaultMaxStreamLen bounds the invocation stream against unbounded
	// growth from abandoned jobs.
	defaultMaxStreamLen = 10000

	// delayedMemberParts is the "messageID|jobID" member layout.
	delayedMemberParts = 2

	// promoteBatchSize caps how many due entries one promotion pass moves.
	promoteBatchSize = 100
)

// Publisher enqueues controller invocations. A zero delay lands directly on
// the stream; a positive delay parks the job id in the delayed sorted set
// until PromoteDue moves it over.
type Publisher struct {
	client       *Client
	maxStreamLen int64
}

// PublisherConfig holds publisher options.
type PublisherConfig struct {
	MaxStreamLen int64
}

// NewPublisher creates a Publisher.
func NewPublisher(client *Client, cfg PublisherConfig) *Publisher {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}
	return &Publisher{client: client, maxStreamLen: maxLen}
}

// Publish schedules an invocation for jobID after delay and returns a
// message id. Delivery is at-least-once; consumers must tolerate duplicates.
func (p *Publisher) Publish(ctx context.Context, jobID string, delay time.Duration) (string, error) {
	if jobID == "" {
		return "", errors.New("job id cannot be empty")
	}

	if delay <= 0 {
		return p.addToStream(ctx, jobID)
	}

	messageID := uuid.NewString()
	readyAt := time.Now().Add(delay)
	err := p.client.rdb.ZAdd(ctx, p.client.DelayedKey(), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: messageID + "|" + jobID,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("schedule delayed invocation: %w", err)
	}
	return messageID, nil
}

// PromoteDue moves invocations whose ready-time has passed from the delayed
// set onto the stream. Returns how many were promoted. Crash between XAdd
// and ZRem yields a duplicate delivery, which the at-least-once contract
// already requires consumers to absorb.
func (p *Publisher) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := p.client.rdb.ZRangeByScore(ctx, p.client.DelayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: promoteBatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("fetch due invocations: %w", err)
	}

	promoted := 0
	for _, member := range due {
		parts := strings.SplitN(member, "|", delayedMemberParts)
		jobID := parts[len(parts)-1]

		if _, addErr := p.addToStream(ctx, jobID); addErr != nil {
			return promoted, addErr
		}
		if remErr := p.client.rdb.ZRem(ctx, p.client.DelayedKey(), member).Err(); remErr != nil {
			return promoted, fmt.Errorf("remove promoted invocation: %w", remErr)
		}
		promoted++
	}
	return promoted, nil
}

func (p *Publisher) addToStream(ctx context.Context, jobID string) (string, error) {
	id, err := p.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.client.StreamKey(),
		MaxLen: p.maxStreamLen,
		Approx: true,
		Values: map[string]any{
			jobIDField:      jobID,
			enqueuedAtField: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue invocation: %w", err)
	}
	return id, nil
}
