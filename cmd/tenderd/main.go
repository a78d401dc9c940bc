package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	tdhttp "github.com/openprocure/tenderd/internal/adapter/http"
	tdnats "github.com/openprocure/tenderd/internal/adapter/nats"
	tdotel "github.com/openprocure/tenderd/internal/adapter/otel"
	"github.com/openprocure/tenderd/internal/adapter/postgres"
	"github.com/openprocure/tenderd/internal/adapter/ristretto"
	"github.com/openprocure/tenderd/internal/adapter/ws"
	"github.com/openprocure/tenderd/internal/config"
	"github.com/openprocure/tenderd/internal/locker"
	"github.com/openprocure/tenderd/internal/logger"
	"github.com/openprocure/tenderd/internal/middleware"
	"github.com/openprocure/tenderd/internal/port/notifier"
	"github.com/openprocure/tenderd/internal/service"
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
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Infrastructure ---

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

	queue, err := tdnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	var metrics *tdotel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := tdotel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		metrics, err = tdotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	emailNotifier, err := notifier.New("email", map[string]string{
		"host":     cfg.SMTP.Host,
		"port":     strconv.Itoa(cfg.SMTP.Port),
		"from":     cfg.SMTP.From,
		"password": cfg.SMTP.Password,
	})
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	audit := postgres.NewAuditLog(pool)
	locks := locker.NewRegistry()

	notifySvc := service.NewNotificationService(store, emailNotifier)
	scoringSvc := service.NewScoringService(store, cache, cfg.Cache.TTL)
	cascadeSvc := service.NewCascadeService(store, locks, queue, hub, audit, notifySvc, metrics)
	awardSvc := service.NewAwardService(store, locks, queue, hub, audit, notifySvc, metrics)
	requisitionSvc := service.NewRequisitionService(store, locks, queue, hub, audit, notifySvc, cascadeSvc)
	quotationSvc := service.NewQuotationService(store)
	vendorSvc := service.NewVendorService(store)
	authSvc := service.NewAuthService(store)

	// --- HTTP ---

	handlers := &tdhttp.Handlers{
		Requisitions: requisitionSvc,
		Quotations:   quotationSvc,
		Scoring:      scoringSvc,
		Awards:       awardSvc,
		Cascade:      cascadeSvc,
		Vendors:      vendorSvc,
		Auth:         authSvc,
		Audit:        audit,
		Store:        store,
	}

	r := chi.NewRouter()

	r.Use(tdhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tdhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Telemetry.Enabled {
		r.Use(tdotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	r.Get("/health", healthHandler(cfg))
	r.Get("/ws", hub.HandleWS)

	tdhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

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

// healthHandler reports service health and configured backends.
func healthHandler(cfg *config.Config) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		NATS     string `json:"nats"`
		Notifier string `json:"notifier"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:   "ok",
			NATS:     cfg.NATS.URL,
			Notifier: cfg.SMTP.Host,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
