package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/creatorpulse/discovery/internal/queue"
)

const testBlockTimeout = 50 * time.Millisecond

func setupQueue(t *testing.T) (*queue.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return queue.NewClientFromRedis(rdb, "testq"), mr
}

func setupConsumer(t *testing.T, client *queue.Client) *queue.Consumer {
	t.Helper()

	consumer, err := queue.NewConsumer(client, queue.ConsumerConfig{
		ConsumerID:   "test-consumer",
		BlockTimeout: testBlockTimeout,
	})
	if err != nil {
		t.Fatalf("failed to create consumer: %v", err)
	}
	if err := consumer.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize consumer group: %v", err)
	}
	return consumer
}

func TestPublishImmediateLandsOnStream(t *testing.T) {
	client, _ := setupQueue(t)
	ctx := context.Background()
	pub := queue.NewPublisher(client, queue.PublisherConfig{})

	msgID, err := pub.Publish(ctx, "job-1", 0)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if msgID == "" {
		t.Error("Publish() returned empty message id")
	}

	length, err := client.StreamLen(ctx)
	if err != nil {
		t.Fatalf("StreamLen() failed: %v", err)
	}
	if length != 1 {
		t.Errorf("stream length = %d, want 1", length)
	}
}

func TestPublishRejectsEmptyJobID(t *testing.T) {
	client, _ := setupQueue(t)
	pub := queue.NewPublisher(client, queue.PublisherConfig{})

	if _, err := pub.Publish(context.Background(), "", 0); err == nil {
		t.Fatal("Publish() with empty job id should fail")
	}
}

func TestPublishDelayedParksInSortedSet(t *testing.T) {
	client, _ := setupQueue(t)
	ctx := context.Background()
	pub := queue.NewPublisher(client, queue.PublisherConfig{})

	if _, err := pub.Publish(ctx, "job-1", 5*time.Second); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	streamLen, _ := client.StreamLen(ctx)
	if streamLen != 0 {
		t.Errorf("stream length = %d, want 0 before promotion", streamLen)
	}
	delayed, err := client.DelayedLen(ctx)
	if err != nil {
		t.Fatalf("DelayedLen() failed: %v", err)
	}
	if delayed != 1 {
		t.Errorf("delayed length = %d, want 1", delayed)
	}
}

func TestPromoteDueMovesOnlyRipeInvocations(t *testing.T) {
	client, _ := setupQueue(t)
	ctx := context.Background()
	pub := queue.NewPublisher(client, queue.PublisherConfig{})

	if _, err := pub.Publish(ctx, "job-soon", 1*time.Second); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if _, err := pub.Publish(ctx, "job-later", 1*time.Hour); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	// Nothing is due yet.
	promoted, err := pub.PromoteDue(ctx, time.Now())
	if err != nil {
		t.Fatalf("PromoteDue() failed: %v", err)
	}
	if promoted != 0 {
		t.Errorf("promoted = %d, want 0 before ready time", promoted)
	}

	// Past the first delay, only the first entry moves.
	promoted, err = pub.PromoteDue(ctx, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("PromoteDue() failed: %v", err)
	}
	if promoted != 1 {
		t.Errorf("promoted = %d, want 1", promoted)
	}

	streamLen, _ := client.StreamLen(ctx)
	if streamLen != 1 {
		t.Errorf("stream length = %d, want 1", streamLen)
	}
	delayed, _ := client.DelayedLen(ctx)
	if delayed != 1 {
		t.Errorf("delayed length = %d, want 1 left", delayed)
	}
}

func TestConsumerReadsAndAcks(t *testing.T) {
	client, _ := setupQueue(t)
	ctx := context.Background()
	pub := queue.NewPublisher(client, queue.PublisherConfig{})
	consumer := setupConsumer(t, client)

	if _, err := pub.Publish(ctx, "job-42", 0); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	messages, err := consumer.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Read() returned %d messages, want 1", len(messages))
	}

	msg := messages[0]
	if msg.JobID != "job-42" {
		t.Errorf("JobID = %q, want job-42", msg.JobID)
	}
	if msg.Deliveries != 1 {
		t.Errorf("Deliveries = %d, want 1 for a fresh read", msg.Deliveries)
	}
	if msg.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt not set")
	}

	pending, err := consumer.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("pending = %d, want 1 before ack", pending)
	}

	if err := consumer.Ack(ctx, msg.ID); err != nil {
		t.Fatalf("Ack() failed: %v", err)
	}

	pending, err = consumer.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d, want 0 after ack", pending)
	}
}

func TestConsumerPreservesPublishOrder(t *testing.T) {
	client, _ := setupQueue(t)
	ctx := context.Background()
	pub := queue.NewPublisher(client, queue.PublisherConfig{})
	consumer := setupConsumer(t, client)

	for _, jobID := range []string{"job-a", "job-b", "job-c"} {
		if _, err := pub.Publish(ctx, jobID, 0); err != nil {
			t.Fatalf("Publish(%s) failed: %v", jobID, err)
		}
	}

	messages, err := consumer.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	want := []string{"job-a", "job-b", "job-c"}
	if len(messages) != len(want) {
		t.Fatalf("Read() returned %d messages, want %d", len(messages), len(want))
	}
	for i, jobID := range want {
		if messages[i].JobID != jobID {
			t.Errorf("messages[%d].JobID = %q, want %q", i, messages[i].JobID, jobID)
		}
	}
}

func TestConsumerSkipsMalformedEntries(t *testing.T) {
	client, mr := setupQueue(t)
	ctx := context.Background()
	consumer := setupConsumer(t, client)

	// An entry without the job id field must be acked away, not delivered.
	if _, err := mr.XAdd("testq:invocations", "*", []string{"garbage", "x"}); err != nil {
		t.Fatalf("XAdd failed: %v", err)
	}

	messages, err := consumer.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("Read() returned %d messages, want 0", len(messages))
	}

	pending, err := consumer.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d, malformed entry should be acked", pending)
	}
}

func TestCreateConsumerGroupIsIdempotent(t *testing.T) {
	client, _ := setupQueue(t)
	ctx := context.Background()

	if err := client.CreateConsumerGroup(ctx, "workers"); err != nil {
		t.Fatalf("first CreateConsumerGroup() failed: %v", err)
	}
	if err := client.CreateConsumerGroup(ctx, "workers"); err != nil {
		t.Fatalf("second CreateConsumerGroup() failed: %v", err)
	}
}

func TestConsumerRequiresID(t *testing.T) {
	client, _ := setupQueue(t)

	if _, err := queue.NewConsumer(client, queue.ConsumerConfig{}); err == nil {
		t.Fatal("NewConsumer() without consumer id should fail")
	}
}
