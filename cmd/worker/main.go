// Package main implements the worker process that drains the durable
// task delivery log: it claims entries, runs the document-processing
// stages and sweeps expired records.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexigraph/lexigraph/internal/config"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/pipeline"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/platform/pdfextract"
	"github.com/lexigraph/lexigraph/internal/platform/postgres"
	"github.com/lexigraph/lexigraph/internal/platform/prosener"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/task"
	"github.com/lexigraph/lexigraph/internal/worker"
)

// metricsPortOffset places the worker's metrics endpoint next to the
// API port without colliding with it.
const metricsPortOffset = 1

func main() {
	if err := run(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("worker configuration loaded",
		"workers", cfg.Worker.Count,
		"claim_wait", cfg.Queue.ClaimWait.String(),
		"visibility_timeout", cfg.Queue.VisibilityTimeout.String())

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db, appLogger)
	caseStore := postgres.NewPostgresCaseStore(db, appLogger)
	entityStore := postgres.NewPostgresEntityStore(db, appLogger)

	q := queue.NewPostgresQueue(db, cfg.Queue.VisibilityTimeout, appLogger)
	taskService := task.NewService(db, taskStore, q, appLogger)

	stages := pipeline.NewStages(db, caseStore, entityStore, taskService,
		pdfextract.NewExtractor(appLogger), prosener.NewRecognizer(appLogger), appLogger)

	pool := worker.NewPool(q, taskService, map[domain.TaskType]worker.StageFunc{
		domain.TaskTypeTextExtraction:   stages.ExtractText,
		domain.TaskTypeEntityExtraction: stages.ExtractEntities,
	}, worker.Config{
		Count:     cfg.Worker.Count,
		ClaimWait: cfg.Queue.ClaimWait,
	}, appLogger)

	sweeper := worker.NewSweeper(taskService, q,
		cfg.Worker.SweepInterval, cfg.Worker.TaskRetention, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)
	go sweeper.Run(ctx)

	// Expose worker metrics for scraping.
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port+metricsPortOffset),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down worker")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = metricsServer.Shutdown(shutdownCtx)

	pool.Wait()
	appLogger.Info("worker shutdown completed")
	return nil
}
