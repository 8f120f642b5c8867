package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/creatorpulse/discovery/internal/api"
	"github.com/creatorpulse/discovery/internal/config"
	"github.com/creatorpulse/discovery/internal/database"
	"github.com/creatorpulse/discovery/internal/logger"
	"github.com/creatorpulse/discovery/internal/queue"
	"github.com/creatorpulse/discovery/internal/telemetry"
)

const (
	// DefaultShutdownTimeout bounds graceful HTTP shutdown
	DefaultShutdownTimeout = 30 * time.Second

	defaultIdleTimeout = 60 * time.Second
)

// APIApp is the status API process with all its dependencies
type APIApp struct {
	config *config.Config
	logger logger.Logger
	db     *sqlx.DB
	queue  *queue.Client
	server *http.Server
}

// NewAPI creates an APIApp with all dependencies initialized
func NewAPI(opts Options) (*APIApp, error) {
	cfg, log, err := loadConfigAndLogger(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	log = log.With(
		logger.String("service", "discovery-api"),
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

	router := api.NewRouter(
		database.NewJobRepository(db),
		database.NewResultRepository(db),
		queueClient,
		queue.NewPublisher(queueClient, queue.PublisherConfig{}),
		telemetry.NewProvider(),
		cfg,
		log,
	)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	return &APIApp{
		config: cfg,
		logger: log,
		db:     db,
		queue:  queueClient,
		server: server,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown
func (a *APIApp) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("status API listening", logger.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully", logger.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	case runErr = <-serverErr:
		a.logger.Error("server error", logger.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("forced shutdown", logger.Error(err))
	}

	a.Close()
	return runErr
}

// Close releases all resources
func (a *APIApp) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	_ = a.logger.Sync()
}
