package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/opticore/opticore-backend/api/routes"
	"github.com/opticore/opticore-backend/internal/alerts"
	"github.com/opticore/opticore-backend/internal/notifications"
	"github.com/opticore/opticore-backend/internal/reservations"
	"github.com/opticore/opticore-backend/internal/restock"
	"github.com/opticore/opticore-backend/internal/stock"
	"github.com/opticore/opticore-backend/internal/transfers"
	"github.com/opticore/opticore-backend/internal/users"
	"github.com/opticore/opticore-backend/pkg/config"
	"github.com/opticore/opticore-backend/pkg/db"
	"github.com/opticore/opticore-backend/pkg/logger"
	"github.com/opticore/opticore-backend/pkg/migrate"
	"github.com/opticore/opticore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	svcs, err := buildServices(cfg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, dbClient *db.Client) (routes.Services, error) {
	gdb := dbClient.DB()
	expiryWindow := time.Duration(cfg.Alerts.ExpiryWindowDays) * 24 * time.Hour

	stockRepo := stock.NewRepository(gdb)
	userSvc, err := users.NewService(users.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}
	notifySvc, err := notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}
	stockSvc, err := stock.NewService(stockRepo, dbClient, expiryWindow)
	if err != nil {
		return routes.Services{}, err
	}
	reservationSvc, err := reservations.NewService(reservations.NewRepository(gdb), stockRepo, dbClient, userSvc, notifySvc)
	if err != nil {
		return routes.Services{}, err
	}
	transferSvc, err := transfers.NewService(transfers.NewRepository(gdb), stockRepo, dbClient, notifySvc)
	if err != nil {
		return routes.Services{}, err
	}
	restockSvc, err := restock.NewService(restock.NewRepository(gdb), stockRepo, dbClient, notifySvc)
	if err != nil {
		return routes.Services{}, err
	}
	alertSvc, err := alerts.NewService(alerts.NewRepository(gdb), expiryWindow)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Stock:         stockSvc,
		Reservations:  reservationSvc,
		Transfers:     transferSvc,
		Restock:       restockSvc,
		Alerts:        alertSvc,
		Notifications: notifySvc,
	}, nil
}
