package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindscape-ai/mindscape/ai"
	"github.com/mindscape-ai/mindscape/buildconfig"
	"github.com/mindscape-ai/mindscape/config"
	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"github.com/mindscape-ai/mindscape/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if config.LogLevel() == "debug" {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("mindscape starting",
		zap.String("version", buildconfig.Version()),
		zap.String("commit", buildconfig.Commit()),
		zap.String("driver", config.StorageDriver()))

	ctx := context.Background()

	store, cleanup, err := openDriver(ctx)
	if err != nil {
		logger.Fatal("failed to open storage driver", zap.Error(err))
	}
	defer cleanup()

	provider, err := ai.NewProvider(config.AIProvider(), config.AIAPIKey())
	if err != nil {
		logger.Fatal("failed to create AI provider", zap.Error(err))
	}
	resilient := ai.NewResilient(provider, ai.ResilientConfig{
		RPS:   config.RateLimitRPS(),
		Burst: config.RateLimitBurst(),
	})

	sink := service.NewDriverSink(store, logger)
	engine := service.NewEngine(store, resilient, sink, logger)
	engine.Jobs().SetConcurrency(config.WorkerConcurrency())
	engine.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(engine.Metrics().Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := config.MetricsAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down")

	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("metrics server forced to shutdown", zap.Error(err))
	}

	logger.Info("stopped")
}

// openDriver builds the configured storage driver and a cleanup func for its
// underlying connection pool.
func openDriver(ctx context.Context) (domain.Driver, func(), error) {
	switch config.StorageDriver() {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		return driver.NewRedis(client), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, config.DatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		pg := driver.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil

	default:
		return driver.NewMemory(), func() {}, nil
	}
}
