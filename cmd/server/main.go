// Package main implements the entry point for the lexigraph API
// server, which accepts case-processing requests, reports task status
// and serves the entity network built from extracted entities.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexigraph/lexigraph/internal/api"
	apimiddleware "github.com/lexigraph/lexigraph/internal/api/middleware"
	"github.com/lexigraph/lexigraph/internal/auth"
	"github.com/lexigraph/lexigraph/internal/config"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/network"
	"github.com/lexigraph/lexigraph/internal/pipeline"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/platform/pdfextract"
	"github.com/lexigraph/lexigraph/internal/platform/postgres"
	"github.com/lexigraph/lexigraph/internal/platform/prosener"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/store"
	"github.com/lexigraph/lexigraph/internal/task"
	"github.com/lexigraph/lexigraph/internal/worker"
)

// application holds the wired dependencies of the server process.
type application struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	queue       queue.Queue
	taskService *task.Service
	caseStore   store.CaseStore

	taskHandler    *api.TaskHandler
	networkHandler *api.NetworkHandler
	authMiddleware *apimiddleware.AuthMiddleware

	// pool runs in-process when the memory queue backend is selected;
	// nil with the durable backend, where cmd/worker drains the log.
	pool        *worker.Pool
	memoryQueue *queue.MemoryQueue
}

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer func() { _ = app.db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		app.logger.Error("server exited with error", slog.String("error", err.Error()))
		stop()
		log.Fatal(err)
	}
}

// initializeApp loads configuration and wires every component.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue_backend", cfg.Queue.Backend)

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrations(db); err != nil {
		return nil, err
	}

	taskStore := postgres.NewPostgresTaskStore(db, appLogger)
	caseStore := postgres.NewPostgresCaseStore(db, appLogger)
	entityStore := postgres.NewPostgresEntityStore(db, appLogger)

	app := &application{
		cfg:       cfg,
		logger:    appLogger,
		db:        db,
		caseStore: caseStore,
	}

	switch cfg.Queue.Backend {
	case "memory":
		app.memoryQueue = queue.NewMemoryQueue(cfg.Queue.BufferSize, appLogger)
		app.queue = app.memoryQueue
	default:
		app.queue = queue.NewPostgresQueue(db, cfg.Queue.VisibilityTimeout, appLogger)
	}

	app.taskService = task.NewService(db, taskStore, app.queue, appLogger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	networkService := network.NewService(entityStore, caseStore, appLogger)

	app.taskHandler = api.NewTaskHandler(app.taskService, caseStore, appLogger)
	app.networkHandler = api.NewNetworkHandler(networkService, appLogger)
	app.authMiddleware = apimiddleware.NewAuthMiddleware(jwtService)

	// With the memory backend there is no separate worker process, so
	// the server drains its own queue.
	if app.memoryQueue != nil {
		stages := pipeline.NewStages(db, caseStore, entityStore, app.taskService,
			pdfextract.NewExtractor(appLogger), prosener.NewRecognizer(appLogger), appLogger)
		app.pool = worker.NewPool(app.queue, app.taskService, map[domain.TaskType]worker.StageFunc{
			domain.TaskTypeTextExtraction:   stages.ExtractText,
			domain.TaskTypeEntityExtraction: stages.ExtractEntities,
		}, worker.Config{
			Count:     cfg.Worker.Count,
			ClaimWait: cfg.Queue.ClaimWait,
		}, appLogger)
	}

	return app, nil
}

// openDatabase connects via the pgx stdlib driver and verifies the
// connection before the server accepts traffic.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// buildRouter assembles the HTTP routes. Everything under /api
// requires a valid bearer token; health and metrics do not.
func (app *application) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(apimiddleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", app.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(app.authMiddleware.Authenticate)

		r.Post("/cases/{caseID}/process", app.taskHandler.ProcessCase)
		r.Get("/tasks", app.taskHandler.List)
		r.Get("/tasks/{taskID}/status", app.taskHandler.GetStatus)
		r.Post("/tasks/{taskID}/retry", app.taskHandler.Retry)
		r.Get("/network", app.networkHandler.GetNetwork)
		r.Get("/network/entity/{name}", app.networkHandler.GetEntity)
	})

	return r
}

// handleHealth reports liveness, including database reachability.
func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// run starts the HTTP server (and the in-process worker pool, if any)
// and blocks until shutdown completes.
func (app *application) run(ctx context.Context) error {
	if app.pool != nil {
		app.pool.Start(ctx)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler: app.buildRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", slog.Int("port", app.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if app.memoryQueue != nil {
		app.memoryQueue.Close()
	}
	if app.pool != nil {
		app.pool.Wait()
	}

	app.logger.Info("server shutdown completed")
	return nil
}
