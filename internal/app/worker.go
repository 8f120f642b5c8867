// Package app provides application lifecycle management for the discovery
// worker and API processes.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/creatorpulse/discovery/internal/config"
	"github.com/creatorpulse/discovery/internal/controller"
	"github.com/creatorpulse/discovery/internal/database"
	"github.com/creatorpulse/discovery/internal/index"
	"github.com/creatorpulse/discovery/internal/logger"
	"github.com/creatorpulse/discovery/internal/platform"
	"github.com/creatorpulse/discovery/internal/queue"
	"github.com/creatorpulse/discovery/internal/telemetry"
	"github.com/creatorpulse/discovery/internal/worker"
)

// Options contains configuration for creating an application
type Options struct {
	ConfigPath string
	Version    string
}

// WorkerApp is the queue-consuming discovery worker with all its dependencies
type WorkerApp struct {
	config     *config.Config
	logger     logger.Logger
	db         *sqlx.DB
	queue      *queue.Client
	dispatcher *worker.Dispatcher
	version    string
}

// NewWorker creates a WorkerApp with all dependencies initialized
func NewWorker(opts Options) (*WorkerApp, error) {
	cfg, log, err := loadConfigAndLogger(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	log = log.With(
		logger.String("service", "discovery-worker"),
		logger.String("version", opts.Version),
	)

	db, err := database.Connect(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	queueClient, err := queue.NewClient(queue.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		db.Close()
		_ = log.Sync()
		return nil, err
	}

	tel := telemetry.NewProvider()

	adapters, err := buildRegistry(cfg, log)
	if err != nil {
		db.Close()
		_ = log.Sync()
		return nil, err
	}

	jobs := database.NewJobRepository(db)
	results := database.NewResultRepository(db)
	publisher := queue.NewPublisher(queueClient, queue.PublisherConfig{})

	consumer, err := queue.NewConsumer(queueClient, queue.ConsumerConfig{
		ConsumerID: "worker-" + uuid.NewString(),
	})
	if err != nil {
		db.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	ctrl := controller.New(jobs, results, publisher, adapters, controller.Config{
		SafetyLimit:   cfg.Engine.SafetyLimit,
		ReinvokeDelay: cfg.Engine.ReinvokeDelay,
	}, log, tel)

	if cfg.Elasticsearch.Enabled {
		esClient, esErr := index.NewClient(cfg.Elasticsearch.URL,
			cfg.Elasticsearch.Username, cfg.Elasticsearch.Password)
		if esErr != nil {
			db.Close()
			_ = log.Sync()
			return nil, esErr
		}
		ctrl.WithIndexer(index.NewCreatorIndexer(esClient, cfg.Elasticsearch.Index, log))
	}

	dispatcher := worker.NewDispatcher(consumer, publisher, queueClient, ctrl,
		worker.DispatcherConfig{
			PromoteInterval: cfg.Engine.PromoteInterval,
			MaxDeliveries:   cfg.Engine.MaxDeliveries,
		}, log, tel)

	if initErr := consumer.Initialize(context.Background()); initErr != nil {
		db.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("initialize consumer group: %w", initErr)
	}

	return &WorkerApp{
		config:     cfg,
		logger:     log,
		db:         db,
		queue:      queueClient,
		dispatcher: dispatcher,
		version:    opts.Version,
	}, nil
}

// Run starts the dispatcher and blocks until shutdown
func (a *WorkerApp) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.dispatcher.Start(runCtx)
	a.logger.Info("discovery worker running",
		logger.Bool("debug", a.config.Debug))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully", logger.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	cancel()
	a.dispatcher.Stop()
	a.Close()
	return nil
}

// Close releases all resources
func (a *WorkerApp) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	_ = a.logger.Sync()
}

// buildRegistry wires one adapter per configured platform.
func buildRegistry(cfg *config.Config, log logger.Logger) (*platform.Registry, error) {
	registry := platform.NewRegistry(
		platform.NewTikTok(platformConfig(cfg.Platforms.TikTok), log),
		platform.NewInstagram(platformConfig(cfg.Platforms.Instagram), log),
		platform.NewYouTube(platformConfig(cfg.Platforms.YouTube), log),
	)
	return registry, nil
}

func platformConfig(pc config.PlatformConfig) platform.Config {
	return platform.Config{
		BaseURL:          pc.BaseURL,
		APIKey:           pc.APIKey,
		RateLimitRPS:     pc.RateLimitRPS,
		EnrichmentFanout: pc.EnrichmentFanout,
		PageSize:         pc.PageSize,
		Timeout:          pc.Timeout,
	}
}

// loadConfigAndLogger loads configuration and creates the logger
func loadConfigAndLogger(configPath string) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}
