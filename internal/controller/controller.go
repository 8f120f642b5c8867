// Package controller implements the continuation state machine that advances
// discovery jobs one queue invocation at a time. All state is reloaded from
// durable storage at the top of every invocation; nothing survives in memory
// between steps.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/creatorpulse/discovery/internal/dedup"
	"github.com/creatorpulse/discovery/internal/domain"
	"github.com/creatorpulse/discovery/internal/logger"
	"github.com/creatorpulse/discovery/internal/platform"
	"github.com/creatorpulse/discovery/internal/progress"
	"github.com/creatorpulse/discovery/internal/telemetry"
)

const (
	// DefaultSafetyLimit caps upstream calls per job.
	DefaultSafetyLimit = 20

	// DefaultReinvokeDelay spaces successive invocations of one job.
	DefaultReinvokeDelay = 3 * time.Second
)

// JobStore is the durable job record store.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
}

// ResultStore is the durable result-set store.
type ResultStore interface {
	Get(ctx context.Context, jobID string) ([]domain.CreatorRecord, error)
	Append(ctx context.Context, jobID string, batch []domain.CreatorRecord) (int, error)
}

// Publisher schedules the next invocation of a job.
type Publisher interface {
	Publish(ctx context.Context, jobID string, delay time.Duration) (string, error)
}

// Indexer receives completed result sets for cross-campaign creator search.
// Optional; indexing failures never affect the job outcome.
type Indexer interface {
	IndexResultSet(ctx context.Context, jobID string, records []domain.CreatorRecord) error
}

// Config holds controller tuning. Knobs are explicit construction-time
// configuration so tests can vary them per run.
type Config struct {
	SafetyLimit   int
	ReinvokeDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.SafetyLimit <= 0 {
		c.SafetyLimit = DefaultSafetyLimit
	}
	if c.ReinvokeDelay <= 0 {
		c.ReinvokeDelay = DefaultReinvokeDelay
	}
	return c
}

// Controller orchestrates one job invocation: load, search, dedup, trim,
// persist, decide. It is the only writer of job records and result sets.
type Controller struct {
	jobs      JobStore
	results   ResultStore
	publisher Publisher
	adapters  *platform.Registry
	indexer   Indexer
	cfg       Config
	log       logger.Logger
	tracer    trace.Tracer
	metrics   *telemetry.Metrics
}

// WithIndexer attaches an optional completed-result-set indexer.
func (c *Controller) WithIndexer(indexer Indexer) *Controller {
	c.indexer = indexer
	return c
}

// New creates a Controller.
func New(
	jobs JobStore,
	results ResultStore,
	publisher Publisher,
	adapters *platform.Registry,
	cfg Config,
	log logger.Logger,
	tel *telemetry.Provider,
) *Controller {
	return &Controller{
		jobs:      jobs,
		results:   results,
		publisher: publisher,
		adapters:  adapters,
		cfg:       cfg.withDefaults(),
		log:       log,
		tracer:    tel.Tracer,
		metrics:   tel.Metrics,
	}
}

// errWorkDiscarded stops an invocation whose job was advanced by a
// concurrent invocation. It never leaves HandleInvocation.
var errWorkDiscarded = errors.New("work discarded after version conflict")

// HandleInvocation advances the job one step. It returns an error only for
// infrastructure failures the caller should redeliver; domain outcomes
// (completion, job failure, version conflict) are absorbed here.
func (c *Controller) HandleInvocation(ctx context.Context, jobID string) error {
	err := c.invoke(ctx, jobID)
	if errors.Is(err, errWorkDiscarded) {
		return nil
	}
	return err
}

func (c *Controller) invoke(ctx context.Context, jobID string) error {
	ctx, span := c.tracer.Start(ctx, "controller.invocation",
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	start := time.Now()

	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Caller error: an invocation for a job that does not exist is
			// never retried.
			c.log.Error("invocation for unknown job", logger.String("job_id", jobID))
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		return fmt.Errorf("load job: %w", err)
	}
	span.SetAttributes(attribute.String("job.platform", job.Platform))

	defer func() {
		c.metrics.InvocationDuration.WithLabelValues(job.Platform).
			Observe(time.Since(start).Seconds())
	}()

	// Re-delivery of a terminal job is a no-op, never an error.
	if job.IsTerminal() {
		c.log.Debug("invocation for terminal job skipped",
			logger.String("job_id", job.ID),
			logger.String("status", string(job.Status)))
		return nil
	}

	// Short-circuit jobs that already hit a bound: a stray re-delivery after
	// the deciding invocation must not trigger another upstream call.
	if job.ResultsCollected >= job.EffectiveTarget() {
		return c.complete(ctx, job, domain.CompletionTargetReached)
	}
	if job.CallsMade >= c.cfg.SafetyLimit {
		return c.complete(ctx, job, domain.CompletionSafetyLimit)
	}

	if err := job.ValidateParams(); err != nil {
		return c.fail(ctx, job, err.Error())
	}

	adapter, err := c.adapters.Get(job.Platform)
	if err != nil {
		return c.fail(ctx, job, err.Error())
	}

	if job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusProcessing
		if err := c.jobs.Update(ctx, job); err != nil {
			return c.absorbWriteError(job, "start processing", err)
		}
		c.metrics.JobsStarted.WithLabelValues(job.Platform).Inc()
	}

	page, err := c.search(ctx, job, adapter)
	if err != nil {
		return c.fail(ctx, job, fmt.Sprintf("upstream search failed: %v", err))
	}

	// Calls-made and the new cursor are persisted before dedup and result
	// persistence so safety-limit accounting survives a crash mid-invocation.
	job.CallsMade++
	job.Cursor = page.NextCursor
	if err := c.jobs.Update(ctx, job); err != nil {
		return c.absorbWriteError(job, "record upstream call", err)
	}

	accepted, err := c.persistBatch(ctx, job, page.Records)
	if err != nil {
		return err
	}

	return c.decide(ctx, job, accepted, page.NextCursor)
}

func (c *Controller) search(ctx context.Context, job *domain.Job, adapter platform.Adapter) (*platform.Page, error) {
	ctx, span := c.tracer.Start(ctx, "controller.search",
		trace.WithAttributes(attribute.Int("job.calls_made", job.CallsMade)))
	defer span.End()

	c.metrics.UpstreamCalls.WithLabelValues(job.Platform).Inc()
	page, err := adapter.Search(ctx, platform.SearchParams{
		Keywords:     job.Keywords,
		TargetHandle: job.TargetHandle,
	}, job.Cursor)
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues(job.Platform).Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("page.records", len(page.Records)))
	return page, nil
}

// persistBatch deduplicates the page against the stored set, trims to the
// remaining quota, appends, and updates the job counters. Returns how many
// records were accepted before trimming, which the decide step uses to detect
// exhaustion.
func (c *Controller) persistBatch(ctx context.Context, job *domain.Job, batch []domain.CreatorRecord) (int, error) {
	c.metrics.RecordsSeen.WithLabelValues(job.Platform).Add(float64(len(batch)))

	existing, err := c.results.Get(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("load result set: %w", err)
	}

	unique := dedup.Filter(existing, batch, job.Platform)
	accepted := len(unique)

	// Trim to the remaining quota: the contract is exactly target records,
	// not at least target.
	if quota := job.RemainingQuota(); len(unique) > quota {
		c.metrics.RecordsTrimmed.WithLabelValues(job.Platform).
			Add(float64(len(unique) - quota))
		unique = unique[:quota]
	}

	if len(unique) > 0 {
		total, appendErr := c.results.Append(ctx, job.ID, unique)
		if appendErr != nil {
			return 0, fmt.Errorf("append results: %w", appendErr)
		}
		job.ResultsCollected = total
		c.metrics.RecordsAccepted.WithLabelValues(job.Platform).
			Add(float64(len(unique)))
	}

	job.Progress = progress.Percent(job.ResultsCollected, job.EffectiveTarget())
	if err := c.jobs.Update(ctx, job); err != nil {
		return 0, c.absorbWriteError(job, "persist batch", err)
	}

	c.log.Info("batch persisted",
		logger.String("job_id", job.ID),
		logger.String("platform", job.Platform),
		logger.Int("batch_size", len(batch)),
		logger.Int("unique", accepted),
		logger.Int("stored", len(unique)),
		logger.Int("collected", job.ResultsCollected),
		logger.Int("progress", job.Progress))
	return accepted, nil
}

// decide picks the terminal reason or schedules the next invocation.
func (c *Controller) decide(ctx context.Context, job *domain.Job, accepted int, nextCursor *string) error {
	switch {
	case job.ResultsCollected >= job.EffectiveTarget():
		return c.complete(ctx, job, domain.CompletionTargetReached)
	case accepted == 0 && nextCursor == nil:
		// Upstream has nothing further: no new uniques and no next page.
		return c.complete(ctx, job, domain.CompletionExhausted)
	case job.CallsMade >= c.cfg.SafetyLimit:
		return c.complete(ctx, job, domain.CompletionSafetyLimit)
	}

	if _, err := c.publisher.Publish(ctx, job.ID, c.cfg.ReinvokeDelay); err != nil {
		return fmt.Errorf("schedule next invocation: %w", err)
	}
	c.log.Debug("next invocation scheduled",
		logger.String("job_id", job.ID),
		logger.Duration("delay", c.cfg.ReinvokeDelay))
	return nil
}

func (c *Controller) complete(ctx context.Context, job *domain.Job, reason domain.CompletionReason) error {
	job.Complete(reason)
	if err := c.jobs.Update(ctx, job); err != nil {
		return c.absorbWriteError(job, "complete job", err)
	}

	c.metrics.JobsCompleted.WithLabelValues(job.Platform, string(reason)).Inc()
	c.log.Info("job completed",
		logger.String("job_id", job.ID),
		logger.String("platform", job.Platform),
		logger.String("reason", string(reason)),
		logger.Int("collected", job.ResultsCollected),
		logger.Int("calls_made", job.CallsMade))

	c.indexCompleted(ctx, job)
	return nil
}

// indexCompleted pushes the finished result set to the search index. Best
// effort: the durable store stays the source of truth.
func (c *Controller) indexCompleted(ctx context.Context, job *domain.Job) {
	if c.indexer == nil || job.ResultsCollected == 0 {
		return
	}
	records, err := c.results.Get(ctx, job.ID)
	if err != nil {
		c.log.Warn("failed to load result set for indexing",
			logger.String("job_id", job.ID), logger.Error(err))
		return
	}
	if err := c.indexer.IndexResultSet(ctx, job.ID, records); err != nil {
		c.log.Warn("failed to index result set",
			logger.String("job_id", job.ID), logger.Error(err))
	}
}

func (c *Controller) fail(ctx context.Context, job *domain.Job, msg string) error {
	job.Fail(msg)
	if err := c.jobs.Update(ctx, job); err != nil {
		return c.absorbWriteError(job, "fail job", err)
	}

	c.metrics.JobsFailed.WithLabelValues(job.Platform).Inc()
	c.log.Warn("job failed",
		logger.String("job_id", job.ID),
		logger.String("platform", job.Platform),
		logger.String("error", msg),
		logger.Int("collected", job.ResultsCollected))
	return nil
}

// absorbWriteError maps a stale-version write to a discard: a concurrent
// invocation already advanced the job, so this one throws its work away
// instead of overwriting fresher state. Other write failures are
// infrastructure errors and bubble up for redelivery.
func (c *Controller) absorbWriteError(job *domain.Job, op string, err error) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		c.metrics.VersionConflicts.Inc()
		c.log.Warn("concurrent invocation detected, discarding work",
			logger.String("job_id", job.ID),
			logger.String("operation", op),
			logger.Int64("version", job.Version))
		return errWorkDiscarded
	}
	return fmt.Errorf("%s: %w", op, err)
}
