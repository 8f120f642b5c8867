// Package api exposes the discovery status API: job submission, status and
// progress polling, and incremental result reads.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/creatorpulse/discovery/internal/config"
	"github.com/creatorpulse/discovery/internal/database"
	"github.com/creatorpulse/discovery/internal/logger"
	"github.com/creatorpulse/discovery/internal/queue"
	"github.com/creatorpulse/discovery/internal/telemetry"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	serviceVersion       = "1.0.0"

	defaultPageSize = 50
	maxPageSize     = 200
)

// Router holds the API dependencies
type Router struct {
	jobs      *database.JobRepository
	results   *database.ResultRepository
	queue     *queue.Client
	publisher *queue.Publisher
	tel       *telemetry.Provider
	cfg       *config.Config
	log       logger.Logger
}

// NewRouter creates a new API router
func NewRouter(
	jobs *database.JobRepository,
	results *database.ResultRepository,
	queueClient *queue.Client,
	publisher *queue.Publisher,
	tel *telemetry.Provider,
	cfg *config.Config,
	log logger.Logger,
) *Router {
	return &Router{
		jobs:      jobs,
		results:   results,
		queue:     queueClient,
		publisher: publisher,
		tel:       tel,
		cfg:       cfg,
		log:       log,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(r.log))

	router.GET("/health", r.healthCheck)
	router.GET("/metrics", gin.WrapH(r.tel.Handler()))

	v1 := router.Group("/api/v1")

	jobs := v1.Group("/jobs")
	jobs.GET("", r.listJobs)
	jobs.POST("", r.createJob)
	jobs.GET("/:id", r.getJob)
	jobs.GET("/:id/results", r.getJobResults)

	v1.GET("/stats", r.getStats)

	return router
}

// healthCheck reports connectivity to the job store and the queue.
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "discovery",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := r.jobs.Ping(ctx) == nil
	if !dbConnected {
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{"connected": dbConnected}

	redisConnected := r.queue.Ping(ctx) == nil
	if !redisConnected {
		health["status"] = healthStatusDegraded
	}
	health["redis"] = gin.H{"connected": redisConnected}

	c.JSON(httpStatusOK, health)
}
