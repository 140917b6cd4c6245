package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"getmyguide/internal/app/policies"
	"getmyguide/internal/app/schedule"
	"getmyguide/internal/app/wiring"
	"getmyguide/internal/infra/config"
	ginserver "getmyguide/internal/infra/http/gin"
	"getmyguide/internal/infra/obs"
	"getmyguide/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("service stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var (
		infra *infrastructure
		err   error
	)
	if cfg.UsesMongo() {
		infra, err = buildMongoInfra(ctx, cfg, logger)
	} else {
		infra, err = buildMemoryInfra(cfg, logger)
	}
	if err != nil {
		return err
	}
	defer infra.close(logger)

	app := wiring.Build(wiring.Deps{
		UoW:          infra.uow,
		Payments:     infra.payments,
		PaymentKeyID: cfg.Payment.KeyID,
		RefundSpeed:  policies.RefundSpeed(cfg.Payment.RefundSpeed),
		Outbox:       infra.outbox,
		Idempotency:  infra.idempotency,
		Validator:    validation.New(),
		Alerts:       infra.alerts,
		Notifier:     infra.notifier,
		Logger:       logger,
		Now:          func() time.Time { return time.Now().UTC() },
		NewID:        uuid.NewString,
	})
	if infra.bindNotifications != nil {
		infra.bindNotifications(app.Notifications)
	}

	fixturesPath := getenv("GUIDE_FIXTURES", defaultGuideFixturesPath())
	if err := loadGuideFixtures(ctx, app.Commands, fixturesPath, logger); err != nil {
		logger.Warn("guide fixtures load failed", "error", err, "path", fixturesPath)
	}

	server := ginserver.NewServer(
		ginserver.ServerConfig{Env: cfg.Env, Addr: cfg.HTTPAddr},
		obs.Middleware{Logger: logger},
		obs.HealthHandlers{Checks: infra.checks, Timeout: 2 * time.Second},
		ginserver.Handlers{
			Bookings:       ginserver.BookingHandler{Commands: app.Commands, Queries: app.Queries, Logger: logger, Currency: cfg.Payment.Currency},
			Availability:   ginserver.AvailabilityHandler{Queries: app.Queries, Logger: logger},
			Guides:         ginserver.GuideHandler{Commands: app.Commands, Queries: app.Queries, Logger: logger},
			AuthMiddleware: ginserver.AuthMiddleware{Secret: []byte(cfg.JWTSecret), Logger: logger}.Handle,
		},
	)

	reminderRunner := &schedule.Runner{
		Name:       "booking-reminders",
		Interval:   cfg.Reminder.Interval,
		RunOnStart: cfg.Reminder.RunOnStart,
		Lock:       infra.locker,
		Job:        app.Reminders.Job(),
		Logger:     logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error { return ignoreCancel(reminderRunner.Run(gctx)) })
	for _, task := range infra.background {
		g.Go(func() error { return ignoreCancel(task(gctx)) })
	}
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
