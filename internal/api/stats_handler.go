package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/creatorpulse/discovery/internal/logger"
)

// getStats returns engine-wide counters for the dashboard overview
// GET /api/v1/stats
func (r *Router) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	jobStats, err := r.jobs.Stats(ctx)
	if err != nil {
		r.log.Error("failed to get job stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	queueStats := gin.H{}
	if depth, qErr := r.queue.StreamLen(ctx); qErr == nil {
		queueStats["depth"] = depth
	}
	if delayed, qErr := r.queue.DelayedLen(ctx); qErr == nil {
		queueStats["delayed"] = delayed
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobStats,
		"queue": queueStats,
	})
}
