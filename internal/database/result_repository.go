package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/creatorpulse/discovery/internal/domain"
)

// ResultRepository manages the append-only result set per job. The set is
// stored as one JSONB document and merged by read-append-write under a row
// lock, so the write cost grows with set size; targets are small enough
// (hundreds) that this stays cheap, and the row lock plus the job-version
// CAS keep concurrent merges from losing records.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a result repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Get returns the stored records for a job, oldest first. A job with no
// stored batch yet yields an empty slice, not an error: the set is created
// lazily on first non-empty append.
func (r *ResultRepository) Get(ctx context.Context, jobID string) ([]domain.CreatorRecord, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT records FROM discovery_results WHERE job_id = $1`, jobID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.CreatorRecord{}, nil
		}
		return nil, fmt.Errorf("get results: %w", err)
	}

	var records []domain.CreatorRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	return records, nil
}

// Append merges a batch into the job's result set and returns the new
// total. Empty batches are a no-op returning the current count.
func (r *ResultRepository) Append(ctx context.Context, jobID string, batch []domain.CreatorRecord) (int, error) {
	existing, err := r.Get(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return len(existing), nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Re-read under the row lock; the unlocked read above only sized the
	// fast path for empty batches.
	var raw []byte
	var records []domain.CreatorRecord
	err = tx.QueryRowContext(ctx,
		`SELECT records FROM discovery_results WHERE job_id = $1 FOR UPDATE`, jobID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Lazily created below.
	case err != nil:
		return 0, fmt.Errorf("lock results: %w", err)
	default:
		if unmarshalErr := json.Unmarshal(raw, &records); unmarshalErr != nil {
			return 0, fmt.Errorf("unmarshal results: %w", unmarshalErr)
		}
	}

	records = append(records, batch...)
	merged, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("marshal results: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO discovery_results (job_id, records, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			records = EXCLUDED.records,
			updated_at = EXCLUDED.updated_at`,
		jobID, merged,
	)
	if err != nil {
		return 0, fmt.Errorf("append results: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return len(records), nil
}

// Count returns the number of stored records for a job.
func (r *ResultRepository) Count(ctx context.Context, jobID string) (int, error) {
	var count sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT jsonb_array_length(records) FROM discovery_results WHERE job_id = $1`,
		jobID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count results: %w", err)
	}
	return int(count.Int64), nil
}
