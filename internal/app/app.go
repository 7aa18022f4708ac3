package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/config"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/postgres"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/redis"
	postgresrepo "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/postgres"
	redisrepo "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/redis"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/booking"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/query"
	httpgin "github.com/Pousito/reserva-tu-cancha-sub003/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

const ledgerSweepBatch = 200

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	services   *service.Services
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewSlotsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "hold", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, logger, service.Config{
		Booking: booking.Config{
			DefaultHoldTTL: cfg.Booking.HoldTTL,
			MinHoldTTL:     30 * time.Second,
			MaxHoldTTL:     15 * time.Minute,
			StorageTimeout: cfg.Booking.StorageTimeout,
		},
		Query: query.Config{
			CourtDayTTL:    15 * time.Second,
			ReservationTTL: 60 * time.Second,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Expire stale holds so abandoned checkouts free their slots
	g.Go(func() error {
		return a.runHoldReaper(gCtx)
	})

	// Reconcile confirmed reservations that missed their ledger entries
	g.Go(func() error {
		return a.runLedgerSweep(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) runHoldReaper(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Jobs.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			expired, err := a.services.Booking.ExpireStaleHolds(ctx, now.UTC())
			if err != nil {
				a.logger.Error("hold reaper tick failed", "error", err)
				continue
			}
			if expired > 0 {
				a.logger.Info("expired stale holds", "count", expired)
			}
		}
	}
}

func (a *App) runLedgerSweep(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Jobs.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := a.services.Ledger.Sweep(ctx, ledgerSweepBatch)
			if err != nil {
				a.logger.Error("ledger sweep tick failed", "error", err)
				continue
			}
			if report.Scanned > 0 {
				a.logger.Info("ledger sweep finished",
					"scanned", report.Scanned,
					"synced", report.Synced,
					"skipped", report.Skipped,
					"failures", len(report.Failures),
				)
			}
		}
	}
}
