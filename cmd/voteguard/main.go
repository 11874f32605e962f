package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/VoteVerify/voteguard/internal/adapter/gemini"
	vghttp "github.com/VoteVerify/voteguard/internal/adapter/http"
	"github.com/VoteVerify/voteguard/internal/adapter/markets"
	vgnats "github.com/VoteVerify/voteguard/internal/adapter/nats"
	vgotel "github.com/VoteVerify/voteguard/internal/adapter/otel"
	"github.com/VoteVerify/voteguard/internal/adapter/perplexity"
	"github.com/VoteVerify/voteguard/internal/adapter/postgres"
	"github.com/VoteVerify/voteguard/internal/adapter/ristretto"
	"github.com/VoteVerify/voteguard/internal/adapter/workersai"
	"github.com/VoteVerify/voteguard/internal/adapter/ws"
	"github.com/VoteVerify/voteguard/internal/config"
	"github.com/VoteVerify/voteguard/internal/logger"
	"github.com/VoteVerify/voteguard/internal/port/judge"
	"github.com/VoteVerify/voteguard/internal/resilience"
	"github.com/VoteVerify/voteguard/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"multi_evaluator", cfg.Judges.MultiEvaluator,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := vgotel.Init(ctx, vgotel.Setup{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Logging.Service,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := vgnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Cache
	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// --- Judges and generator ---

	primary := gemini.NewClient(cfg.Judges.Gemini.BaseURL, cfg.Judges.Gemini.APIKey,
		cfg.Judges.Gemini.Model, cfg.Judges.Timeout)
	primary.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	var secondary judge.Judge
	if cfg.Judges.Workers.AccountID != "" && cfg.Judges.Workers.APIToken != "" {
		workers := workersai.NewClient(cfg.Judges.Workers.BaseURL, cfg.Judges.Workers.AccountID,
			cfg.Judges.Workers.APIToken, cfg.Judges.Workers.Model, cfg.Judges.Timeout)
		workers.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		secondary = workers
	} else {
		slog.Warn("secondary judge not configured; running single-evaluator")
	}

	generator := perplexity.NewClient(cfg.Generator.BaseURL, cfg.Generator.APIKey,
		cfg.Generator.Model, cfg.Generator.Timeout)
	generator.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	var marketsClient *markets.Client
	if cfg.Markets.Enabled {
		marketsClient = markets.NewClient(cfg.Markets.BaseURL, cfg.Markets.Timeout)
		marketsClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	metrics, err := vgotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	gate := service.NewQualityGate(primary, secondary, cfg.Judges.MultiEvaluator, cfg.Judges.Timeout)
	gate.SetMetrics(metrics)
	controller := service.NewReloopController(gate, cfg.Reloop.MaxAttempts, cfg.Reloop.Backoff)

	promiseSvc := service.NewPromiseService(store, queue, hub)
	validationSvc := service.NewValidationService(store, queue, cache, hub,
		generator, marketsClient, controller, gate, metrics)

	// --- HTTP ---

	handlers := &vghttp.Handlers{
		Promises:   promiseSvc,
		Validation: validationSvc,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(vghttp.CORS(cfg.Server.CORSOrigin))
	r.Use(vghttp.SecurityHeaders)
	r.Use(vghttp.RequestID)
	r.Use(vghttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(vgotel.HTTPMiddleware(cfg.Logging.Service))

	// Health endpoint with service status
	r.Get("/health", healthHandler(cfg, hub))

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	// API routes
	vghttp.MountRoutes(r, handlers, cfg.Admin.APIKeyHash)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Validation runs are synchronous and span several LLM round trips.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(cfg *config.Config, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status         string `json:"status"`
		NATS           string `json:"nats"`
		MultiEvaluator bool   `json:"multi_evaluator"`
		WSConnections  int    `json:"ws_connections"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:         "ok",
			NATS:           cfg.NATS.URL,
			MultiEvaluator: cfg.Judges.MultiEvaluator,
			WSConnections:  hub.ConnectionCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
