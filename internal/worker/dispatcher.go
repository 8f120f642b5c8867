// Package worker provides the background dispatcher that drains the
// invocation queue and drives the continuation controller.
package worker

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/creatorpulse/discovery/internal/logger"
	"github.com/creatorpulse/discovery/internal/queue"
	"github.com/creatorpulse/discovery/internal/telemetry"
)

const (
	defaultPromoteInterval = time.Second
	defaultMaxDeliveries   = 5
	statsInterval          = 15 * time.Second
)

// InvocationHandler advances one job. Implemented by the controller.
type InvocationHandler interface {
	HandleInvocation(ctx context.Context, jobID string) error
}

// Dispatcher runs two loops: a consume loop that reads invocations and hands
// them to the controller, and a promote loop that moves due delayed
// invocations onto the stream. Messages are acknowledged only after the
// handler returns cleanly; failed handling leaves them pending for reclaim.
type Dispatcher struct {
	consumer  *queue.Consumer
	publisher *queue.Publisher
	client    *queue.Client
	handler   InvocationHandler
	log       logger.Logger
	tracer    trace.Tracer
	metrics   *telemetry.Metrics

	promoteInterval time.Duration
	maxDeliveries   int64

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// DispatcherConfig holds configuration options
type DispatcherConfig struct {
	PromoteInterval time.Duration
	MaxDeliveries   int64
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	consumer *queue.Consumer,
	publisher *queue.Publisher,
	client *queue.Client,
	handler InvocationHandler,
	cfg DispatcherConfig,
	log logger.Logger,
	tel *telemetry.Provider,
) *Dispatcher {
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = defaultPromoteInterval
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = defaultMaxDeliveries
	}

	return &Dispatcher{
		consumer:        consumer,
		publisher:       publisher,
		client:          client,
		handler:         handler,
		log:             log,
		tracer:          otel.Tracer("dispatcher"),
		metrics:         tel.Metrics,
		promoteInterval: cfg.PromoteInterval,
		maxDeliveries:   cfg.MaxDeliveries,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the dispatcher loops
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.runConsume(ctx)

	d.wg.Add(1)
	go d.runPromote(ctx)

	d.wg.Add(1)
	go d.runStats(ctx)

	d.log.Info("dispatcher started",
		logger.Duration("promote_interval", d.promoteInterval),
		logger.Int64("max_deliveries", d.maxDeliveries))
}

// Stop gracefully stops the dispatcher, waiting for in-flight invocations.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()
	d.log.Info("dispatcher stopped")
}

// IsRunning returns whether the dispatcher is currently running
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

func (d *Dispatcher) runConsume(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		messages, err := d.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error("failed to read invocations", logger.Error(err))
			// Back off briefly so a dead Redis does not spin the loop.
			select {
			case <-time.After(time.Second):
			case <-d.stopChan:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		for i := range messages {
			d.handleOne(ctx, &messages[i])
		}
	}
}

func (d *Dispatcher) handleOne(ctx context.Context, msg *queue.Message) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.handle",
		trace.WithAttributes(
			attribute.String("job_id", msg.JobID),
			attribute.Int64("deliveries", msg.Deliveries),
		))
	defer span.End()

	// Poisoned messages that keep failing are dropped after the delivery
	// budget, not retried forever.
	if msg.Deliveries > d.maxDeliveries {
		d.metrics.MessagesDropped.Inc()
		d.log.Error("dropping invocation after max deliveries",
			logger.String("job_id", msg.JobID),
			logger.Int64("deliveries", msg.Deliveries))
		d.ack(ctx, msg)
		return
	}

	if err := d.handler.HandleInvocation(ctx, msg.JobID); err != nil {
		span.RecordError(err)
		d.log.Error("invocation failed, leaving pending for redelivery",
			logger.String("job_id", msg.JobID),
			logger.Int64("deliveries", msg.Deliveries),
			logger.Error(err))
		return
	}

	d.ack(ctx, msg)
}

func (d *Dispatcher) ack(ctx context.Context, msg *queue.Message) {
	if err := d.consumer.Ack(ctx, msg.ID); err != nil {
		// The invocation already ran; a failed ack just means one duplicate
		// delivery later, which the controller's terminal check absorbs.
		d.log.Warn("failed to ack invocation",
			logger.String("message_id", msg.ID),
			logger.Error(err))
	}
}

func (d *Dispatcher) runPromote(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			promoted, err := d.publisher.PromoteDue(ctx, time.Now())
			if err != nil {
				d.log.Error("failed to promote delayed invocations", logger.Error(err))
			} else if promoted > 0 {
				d.log.Debug("promoted delayed invocations", logger.Int("count", promoted))
			}
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runStats keeps the queue depth gauges fresh.
func (d *Dispatcher) runStats(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if depth, err := d.client.StreamLen(ctx); err == nil {
				d.metrics.QueueDepth.Set(float64(depth))
			}
			if depth, err := d.client.DelayedLen(ctx); err == nil {
				d.metrics.DelayedDepth.Set(float64(depth))
			}
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
