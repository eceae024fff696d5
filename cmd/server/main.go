package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/botfleet/registry/internal/api"
	"github.com/botfleet/registry/internal/buildconfig"
	"github.com/botfleet/registry/internal/config"
	"github.com/botfleet/registry/internal/logging"
	"github.com/botfleet/registry/internal/store"
	"github.com/botfleet/registry/internal/store/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(config.LogLevel(), config.LogFile())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting bot registry", zap.String("build", buildconfig.String()))

	ctx := context.Background()

	stores, closeDB := openStores(ctx, logger)
	defer closeDB()

	app := api.NewApp(stores, logger)

	// Start background services
	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop background services
	app.Stop()

	logger.Info("server stopped")
}

func openStores(ctx context.Context, logger *zap.Logger) (api.Stores, func()) {
	switch driver := config.StoreDriver(); driver {
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required for the postgres driver")
		}

		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		logger.Info("connected to database", zap.String("driver", driver))

		if err := store.Migrate(ctx, pool, config.MigrationsPath(), logger); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		return api.PostgresStores(pool), pool.Close

	case "sqlite":
		path := config.SQLitePath()
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			logger.Fatal("failed to open sqlite database", zap.String("path", path), zap.Error(err))
		}
		logger.Info("connected to database", zap.String("driver", driver), zap.String("path", path))
		return api.SQLiteStores(db), func() { _ = db.Close() }

	default:
		logger.Fatal("unsupported STORE_DRIVER", zap.String("driver", driver))
	}
	return api.Stores{}, func() {}
}
