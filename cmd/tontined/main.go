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

	thttp "github.com/rpams/tontine-core/internal/adapter/http"
	tnats "github.com/rpams/tontine-core/internal/adapter/nats"
	"github.com/rpams/tontine-core/internal/adapter/postgres"
	"github.com/rpams/tontine-core/internal/adapter/ristretto"
	"github.com/rpams/tontine-core/internal/config"
	"github.com/rpams/tontine-core/internal/logger"
	"github.com/rpams/tontine-core/internal/middleware"
	"github.com/rpams/tontine-core/internal/service"
)

func main() {
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

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"fee_bps", cfg.Fees.Bps,
	)

	ctx := context.Background()

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
	queue, err := tnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Role cache
	roleCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer roleCache.Close()

	// --- Services ---
	store := postgres.NewStore(pool)
	rotationSvc := service.NewRotationService(store)
	ledgerSvc := service.NewLedgerService(store, queue)
	roundSvc := service.NewRoundService(store, queue, rotationSvc, ledgerSvc, cfg.Fees.Bps)
	tontineSvc := service.NewTontineService(store, queue, roundSvc)
	enrollSvc := service.NewEnrollmentService(store, queue, tontineSvc)
	statsSvc := service.NewStatsService(store)
	authzSvc := service.NewAuthzService(store, roleCache, cfg.Cache.RoleTTL)

	// --- HTTP ---
	handlers := &thttp.Handlers{
		Tontines:   tontineSvc,
		Enrollment: enrollSvc,
		Rounds:     roundSvc,
		Rotation:   rotationSvc,
		Ledger:     ledgerSvc,
		Stats:      statsSvc,
		Authz:      authzSvc,
	}

	// Per-IP rate limiting
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()

	// Middleware
	r.Use(thttp.SecurityHeaders)
	r.Use(thttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(thttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(limiter.Handler)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Auth(authzSvc, cfg.Auth.Enabled))

	// Health endpoint with service status
	r.Get("/health", healthHandler(cfg))

	// API routes
	thttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
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
func healthHandler(cfg *config.Config) http.HandlerFunc {
	type healthStatus struct {
		Status string `json:"status"`
		NATS   string `json:"nats"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status: "ok",
			NATS:   cfg.NATS.URL,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
