package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/creatorpulse/discovery/internal/domain"
)

// jobSelectList is the column list for SELECT on discovery_jobs (single
// source for schema changes).
const jobSelectList = `id, platform, keywords, target_handle, target_results,
	cursor, calls_made, results_collected, progress, status,
	completion_reason, error_message, version, created_at, updated_at`

// JobRepository manages discovery job rows. All writes are optimistic
// compare-and-swap on the version column: a stale write affects zero rows
// and surfaces as ErrVersionConflict, so overlapping invocations can never
// silently overwrite each other.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Ping verifies database connectivity for health checks.
func (r *JobRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO discovery_jobs (
			id, platform, keywords, target_handle, target_results,
			cursor, calls_made, results_collected, progress, status,
			completion_reason, error_message, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Platform, pq.Array(job.Keywords), nullString(job.TargetHandle),
		job.TargetResults, job.Cursor, job.CallsMade, job.ResultsCollected,
		job.Progress, job.Status, reasonValue(job.CompletionReason),
		job.ErrorMessage, job.Version, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID loads a job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobSelectList + ` FROM discovery_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update writes the job back using the version it was read at. On success
// the in-memory version is advanced to match the stored row.
func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE discovery_jobs
		SET cursor = $1,
		    calls_made = $2,
		    results_collected = $3,
		    progress = $4,
		    status = $5,
		    completion_reason = $6,
		    error_message = $7,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $8 AND version = $9`

	result, err := r.db.ExecContext(ctx, query,
		job.Cursor, job.CallsMade, job.ResultsCollected, job.Progress,
		job.Status, reasonValue(job.CompletionReason), job.ErrorMessage,
		job.ID, job.Version,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return r.classifyMissedUpdate(ctx, job.ID)
	}

	job.Version++
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// classifyMissedUpdate distinguishes a vanished row from a stale version.
func (r *JobRepository) classifyMissedUpdate(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM discovery_jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("classify missed update: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}

// List returns jobs newest first for the dashboard.
func (r *JobRepository) List(ctx context.Context, limit, offset int) ([]domain.Job, error) {
	query := `SELECT ` + jobSelectList + `
		FROM discovery_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryxContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// JobStats holds per-status counts for the stats endpoint.
type JobStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Errored    int64 `json:"errored"`
}

// Stats aggregates job counts by status.
func (r *JobRepository) Stats(ctx context.Context) (*JobStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'error') AS errored
		FROM discovery_jobs`

	var stats JobStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending, &stats.Processing, &stats.Completed, &stats.Errored,
	)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &stats, nil
}

// rowScanner covers both QueryRowx and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job          domain.Job
		keywords     pq.StringArray
		targetHandle sql.NullString
		reason       sql.NullString
	)

	err := row.Scan(
		&job.ID, &job.Platform, &keywords, &targetHandle, &job.TargetResults,
		&job.Cursor, &job.CallsMade, &job.ResultsCollected, &job.Progress,
		&job.Status, &reason, &job.ErrorMessage, &job.Version,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Keywords = keywords
	if targetHandle.Valid {
		job.TargetHandle = targetHandle.String
	}
	if reason.Valid {
		cr := domain.CompletionReason(reason.String)
		job.CompletionReason = &cr
	}
	return &job, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func reasonValue(r *domain.CompletionReason) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}
