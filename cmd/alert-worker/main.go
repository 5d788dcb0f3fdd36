package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opticore/opticore-backend/internal/alerts"
	"github.com/opticore/opticore-backend/internal/notifications"
	"github.com/opticore/opticore-backend/internal/users"
	"github.com/opticore/opticore-backend/pkg/config"
	"github.com/opticore/opticore-backend/pkg/db"
	"github.com/opticore/opticore-backend/pkg/logger"
	"github.com/opticore/opticore-backend/pkg/metrics"
	"github.com/opticore/opticore-backend/pkg/migrate"
	"github.com/opticore/opticore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "alert-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "alert-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gdb := dbClient.DB()
	expiryWindow := time.Duration(cfg.Alerts.ExpiryWindowDays) * 24 * time.Hour

	alertSvc, err := alerts.NewService(alerts.NewRepository(gdb), expiryWindow)
	if err != nil {
		logg.Error(context.Background(), "failed to create alerts service", err)
		os.Exit(1)
	}
	userSvc, err := users.NewService(users.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}
	notifySvc, err := notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	dispatcher, err := alerts.NewDispatcher(alertSvc, userSvc, notifySvc, redisClient, 24*time.Hour, logg, jobMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create alert dispatcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Alerts.Interval.String(),
	})

	metricsServer := startMetricsServer(ctx, cfg.Alerts.MetricsPort, logg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting alert worker")

	runSweep(ctx, dispatcher, logg)

	ticker := time.NewTicker(cfg.Alerts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logg.Info(ctx, "alert worker shutting down gracefully")
			return
		case <-ticker.C:
			runSweep(ctx, dispatcher, logg)
		}
	}
}

func runSweep(ctx context.Context, dispatcher *alerts.Dispatcher, logg *logger.Logger) {
	sent, err := dispatcher.RunSweep(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "alert sweep failed", err)
		return
	}
	logg.Info(logg.WithField(ctx, "notifications_sent", sent), "alert sweep complete")
}

func startMetricsServer(ctx context.Context, port string, logg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	return server
}
