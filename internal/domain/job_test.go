package domain_test

import (
	"errors"
	"testing"

	"github.com/creatorpulse/discovery/internal/domain"
)

func TestNewJob(t *testing.T) {
	testCases := []struct {
		name          string
		id            string
		platform      string
		keywords      []string
		targetHandle  string
		targetResults int
		wantErr       error
		wantTarget    int
	}{
		{
			name:          "valid keyword job",
			id:            "job-1",
			platform:      "tiktok",
			keywords:      []string{"fitness"},
			targetResults: 25,
			wantTarget:    25,
		},
		{
			name:         "valid handle job with default target",
			id:           "job-2",
			platform:     "instagram",
			targetHandle: "somecreator",
			wantTarget:   domain.DefaultTargetResults,
		},
		{
			name:          "negative target clamps to minimum",
			id:            "job-3",
			platform:      "youtube",
			keywords:      []string{"vlog"},
			targetResults: -5,
			wantTarget:    domain.MinTargetResults,
		},
		{
			name:     "missing id",
			platform: "tiktok",
			keywords: []string{"fitness"},
			wantErr:  domain.ErrInvalidJobParams,
		},
		{
			name:     "missing platform",
			id:       "job-4",
			keywords: []string{"fitness"},
			wantErr:  domain.ErrInvalidJobParams,
		},
		{
			name:     "neither keywords nor handle",
			id:       "job-5",
			platform: "tiktok",
			wantErr:  domain.ErrInvalidJobParams,
		},
		{
			name:     "keywords that normalize to empty",
			id:       "job-6",
			platform: "tiktok",
			keywords: []string{"  ", ""},
			wantErr:  domain.ErrInvalidJobParams,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			job, err := domain.NewJob(tc.id, tc.platform, tc.keywords, tc.targetHandle, tc.targetResults)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("NewJob() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJob() unexpected error: %v", err)
			}
			if job.TargetResults != tc.wantTarget {
				t.Errorf("TargetResults = %d, want %d", job.TargetResults, tc.wantTarget)
			}
			if job.Status != domain.JobStatusPending {
				t.Errorf("Status = %s, want pending", job.Status)
			}
			if job.Version != 1 {
				t.Errorf("Version = %d, want 1", job.Version)
			}
		})
	}
}

func TestNewJobNormalizesKeywords(t *testing.T) {
	job, err := domain.NewJob("job-1", "tiktok",
		[]string{" Fitness ", "fitness", "YOGA"}, "", 10)
	if err != nil {
		t.Fatalf("NewJob() unexpected error: %v", err)
	}

	want := []string{"fitness", "yoga"}
	if len(job.Keywords) != len(want) {
		t.Fatalf("Keywords = %v, want %v", job.Keywords, want)
	}
	for i, kw := range want {
		if job.Keywords[i] != kw {
			t.Errorf("Keywords[%d] = %q, want %q", i, job.Keywords[i], kw)
		}
	}
}

func TestJobComplete(t *testing.T) {
	testCases := []struct {
		name         string
		reason       domain.CompletionReason
		progress     int
		wantProgress int
	}{
		{
			name:         "target reached forces full progress",
			reason:       domain.CompletionTargetReached,
			progress:     97,
			wantProgress: 100,
		},
		{
			name:         "safety limit keeps partial progress",
			reason:       domain.CompletionSafetyLimit,
			progress:     40,
			wantProgress: 40,
		},
		{
			name:         "exhausted keeps partial progress",
			reason:       domain.CompletionExhausted,
			progress:     12,
			wantProgress: 12,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			job := &domain.Job{Status: domain.JobStatusProcessing, Progress: tc.progress}
			job.Complete(tc.reason)

			if job.Status != domain.JobStatusCompleted {
				t.Errorf("Status = %s, want completed", job.Status)
			}
			if job.CompletionReason == nil || *job.CompletionReason != tc.reason {
				t.Errorf("CompletionReason = %v, want %s", job.CompletionReason, tc.reason)
			}
			if job.Progress != tc.wantProgress {
				t.Errorf("Progress = %d, want %d", job.Progress, tc.wantProgress)
			}
			if !job.IsTerminal() {
				t.Error("IsTerminal() = false after Complete")
			}
		})
	}
}

func TestJobFail(t *testing.T) {
	job := &domain.Job{Status: domain.JobStatusProcessing}
	job.Fail("upstream auth rejected")

	if job.Status != domain.JobStatusError {
		t.Errorf("Status = %s, want error", job.Status)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage != "upstream auth rejected" {
		t.Errorf("ErrorMessage = %v, want message set", job.ErrorMessage)
	}
	if !job.IsTerminal() {
		t.Error("IsTerminal() = false after Fail")
	}
}

func TestJobRemainingQuota(t *testing.T) {
	testCases := []struct {
		name      string
		target    int
		collected int
		want      int
	}{
		{"fresh job", 10, 0, 10},
		{"partially filled", 10, 4, 6},
		{"exactly full", 10, 10, 0},
		{"over target never negative", 10, 12, 0},
		{"legacy zero target counts as one", 0, 0, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			job := &domain.Job{TargetResults: tc.target, ResultsCollected: tc.collected}
			if got := job.RemainingQuota(); got != tc.want {
				t.Errorf("RemainingQuota() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNormalizeKeywords(t *testing.T) {
	got := domain.NormalizeKeywords([]string{" Dance ", "dance", "", "MUSIC", "music "})
	want := []string{"dance", "music"}

	if len(got) != len(want) {
		t.Fatalf("NormalizeKeywords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeKeywords()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if domain.NormalizeKeywords(nil) != nil {
		t.Error("NormalizeKeywords(nil) should be nil")
	}
}
