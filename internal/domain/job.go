// Package domain contains the core domain models for the discovery engine.
package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a discovery job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// CompletionReason records why a job reached the completed status.
// All three reasons are terminal successes; clients branch on status,
// not on the presence of results.
type CompletionReason string

const (
	// CompletionTargetReached means exactly target-results unique records
	// were collected.
	CompletionTargetReached CompletionReason = "target_reached"

	// CompletionSafetyLimit means the upstream call budget ran out before
	// the target was reached. The job stops short but is not failed.
	CompletionSafetyLimit CompletionReason = "safety_limit"

	// CompletionExhausted means the upstream returned no further pages and
	// no new records before the target was reached.
	CompletionExhausted CompletionReason = "exhausted"
)

// DefaultTargetResults is applied when a caller omits the target count.
const DefaultTargetResults = 50

// MinTargetResults is the clamp floor for zero or negative targets.
const MinTargetResults = 1

// Job is one creator-discovery request. It is mutated exclusively by the
// continuation controller; every write goes through a compare-and-swap on
// Version so overlapping invocations cannot silently overwrite each other.
type Job struct {
	ID               string            `db:"id"                json:"id"`
	Platform         string            `db:"platform"          json:"platform"`
	Keywords         []string          `db:"keywords"          json:"keywords"`
	TargetHandle     string            `db:"target_handle"     json:"target_handle,omitempty"`
	TargetResults    int               `db:"target_results"    json:"target_results"`
	Cursor           *string           `db:"cursor"            json:"cursor,omitempty"`
	CallsMade        int               `db:"calls_made"        json:"calls_made"`
	ResultsCollected int               `db:"results_collected" json:"results_collected"`
	Progress         int               `db:"progress"          json:"progress"`
	Status           JobStatus         `db:"status"            json:"status"`
	CompletionReason *CompletionReason `db:"completion_reason" json:"completion_reason,omitempty"`
	ErrorMessage     *string           `db:"error_message"     json:"error_message,omitempty"`
	Version          int64             `db:"version"           json:"version"`
	CreatedAt        time.Time         `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"        json:"updated_at"`
}

// NewJob creates a pending job with validation and target clamping.
func NewJob(id, platform string, keywords []string, targetHandle string, targetResults int) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidJobParams)
	}
	if platform == "" {
		return nil, fmt.Errorf("%w: platform is required", ErrInvalidJobParams)
	}
	keywords = NormalizeKeywords(keywords)
	if len(keywords) == 0 && targetHandle == "" {
		return nil, fmt.Errorf("%w: keywords or target handle required", ErrInvalidJobParams)
	}
	if targetResults == 0 {
		targetResults = DefaultTargetResults
	}
	if targetResults < MinTargetResults {
		targetResults = MinTargetResults
	}

	now := time.Now().UTC()
	return &Job{
		ID:            id,
		Platform:      platform,
		Keywords:      keywords,
		TargetHandle:  targetHandle,
		TargetResults: targetResults,
		Status:        JobStatusPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsTerminal reports whether the job can never transition again.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusError
}

// EffectiveTarget returns the target clamped to the sane minimum. Rows
// written before clamping was enforced may still hold zero or negative
// targets.
func (j *Job) EffectiveTarget() int {
	if j.TargetResults < MinTargetResults {
		return MinTargetResults
	}
	return j.TargetResults
}

// RemainingQuota is how many more unique records the job may accept.
func (j *Job) RemainingQuota() int {
	remaining := j.EffectiveTarget() - j.ResultsCollected
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Complete marks the job terminal with the given reason. Target-reached
// completion always reports full progress.
func (j *Job) Complete(reason CompletionReason) {
	j.Status = JobStatusCompleted
	j.CompletionReason = &reason
	if reason == CompletionTargetReached {
		j.Progress = 100
	}
	j.UpdatedAt = time.Now().UTC()
}

// Fail marks the job terminal with an error message. Partial results
// persisted before the failure are retained.
func (j *Job) Fail(msg string) {
	j.Status = JobStatusError
	j.ErrorMessage = &msg
	j.UpdatedAt = time.Now().UTC()
}

// ValidateParams checks the search parameters without mutating the job.
func (j *Job) ValidateParams() error {
	if len(j.Keywords) == 0 && j.TargetHandle == "" {
		return fmt.Errorf("%w: keywords or target handle required", ErrInvalidJobParams)
	}
	return nil
}
