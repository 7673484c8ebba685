package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/policylifecycle/audit"
	"github.com/liamcoop/policylifecycle/internal/config"
	"github.com/liamcoop/policylifecycle/internal/logger"
	"github.com/liamcoop/policylifecycle/internal/metrics"
	"github.com/liamcoop/policylifecycle/migrations"
	"github.com/liamcoop/policylifecycle/registry"
)

// NewServerFromConfig builds the rule registry, the audit recorder and the
// HTTP server described by cfg. The returned cleanup closes the database, if
// one was opened.
func NewServerFromConfig(cfg *config.Config) (*Server, func(), error) {
	reg := registry.NewManager()
	if err := reg.LoadBuiltin(); err != nil {
		return nil, nil, err
	}
	if cfg.DefaultRuleVersion != "" {
		if err := reg.SetDefault(cfg.DefaultRuleVersion); err != nil {
			return nil, nil, fmt.Errorf("DEFAULT_RULE_VERSION: %w", err)
		}
	}

	cleanup := func() {}
	var recorder *audit.Recorder

	if cfg.RecordDecisions {
		var store audit.DecisionStore

		if cfg.DatabaseURL != "" {
			db, err := openDatabase(cfg)
			if err != nil {
				return nil, nil, err
			}
			cleanup = func() { db.Close() }
			store = audit.NewPostgresDecisionStore(db)
			logger.Info("recording decisions to postgres")
		} else {
			store = audit.NewInMemoryDecisionStore()
			logger.Info("recording decisions in memory")
		}

		cacheConfig := audit.DefaultCacheConfig()
		cacheConfig.TTL = cfg.DecisionCacheTTL
		recorder = audit.NewRecorder(store, audit.NewInMemoryDecisionCache(cacheConfig))
	} else {
		logger.Info("decision recording disabled")
	}

	collector := metrics.NewCollector(nil)
	return NewServer(reg, recorder, collector, cfg.RequestTimeout), cleanup, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if cfg.MigrationsOnStart {
		changed, err := migrations.Up(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("migrations applied", "changed", changed)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.ErrorSampleRate); err != nil {
		logger.Warn("log level not recognised", "error", err)
	}

	server, cleanup, err := NewServerFromConfig(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
