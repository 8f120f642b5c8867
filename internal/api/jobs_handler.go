package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/creatorpulse/discovery/internal/domain"
	"github.com/creatorpulse/discovery/internal/logger"
)

// JobCreateRequest is the payload for submitting a discovery job.
type JobCreateRequest struct {
	Platform      string   `json:"platform" binding:"required"`
	Keywords      []string `json:"keywords"`
	TargetHandle  string   `json:"target_handle"`
	TargetResults int      `json:"target_results"`
}

// createJob accepts a discovery request and enqueues its first invocation
// POST /api/v1/jobs
func (r *Router) createJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req JobCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	job, err := domain.NewJob(uuid.NewString(), req.Platform, req.Keywords,
		req.TargetHandle, req.TargetResults)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := r.jobs.Create(ctx, job); err != nil {
		r.log.Error("failed to create job", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	if _, err := r.publisher.Publish(ctx, job.ID, 0); err != nil {
		// The job row exists but nothing will pick it up; surface that
		// clearly rather than returning a job that never progresses.
		r.log.Error("failed to enqueue job",
			logger.String("job_id", job.ID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue job"})
		return
	}

	c.JSON(http.StatusCreated, job)
}

// getJob returns job status, progress, and completion reason
// GET /api/v1/jobs/:id
func (r *Router) getJob(c *gin.Context) {
	ctx := c.Request.Context()

	job, err := r.jobs.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		r.log.Error("failed to get job", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// listJobs returns jobs newest first
// GET /api/v1/jobs?limit=50&offset=0
func (r *Router) listJobs(c *gin.Context) {
	ctx := c.Request.Context()
	limit, offset := pagination(c)

	jobs, err := r.jobs.List(ctx, limit, offset)
	if err != nil {
		r.log.Error("failed to list jobs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  limit,
		"offset": offset,
	})
}

// getJobResults returns a page of the job's result set. Partial results are
// readable while the job is still processing.
// GET /api/v1/jobs/:id/results?limit=50&offset=0
func (r *Router) getJobResults(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		r.log.Error("failed to get job", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	records, err := r.results.Get(ctx, jobID)
	if err != nil {
		r.log.Error("failed to get results",
			logger.String("job_id", jobID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get results"})
		return
	}

	limit, offset := pagination(c)
	page := paginate(records, limit, offset)

	c.JSON(http.StatusOK, gin.H{
		"job_id":   jobID,
		"status":   job.Status,
		"progress": job.Progress,
		"total":    len(records),
		"limit":    limit,
		"offset":   offset,
		"results":  page,
	})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginate(records []domain.CreatorRecord, limit, offset int) []domain.CreatorRecord {
	if offset >= len(records) {
		return []domain.CreatorRecord{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}
