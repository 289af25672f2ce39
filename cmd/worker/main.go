// Package main runs the background job worker (expired event sweeps).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rocky-roll-call/rrc-backend/config"
	"github.com/rocky-roll-call/rrc-backend/internal/events"
	"github.com/rocky-roll-call/rrc-backend/internal/worker"
	"github.com/rocky-roll-call/rrc-backend/pkg/database"
	"github.com/rocky-roll-call/rrc-backend/pkg/queue"
	"github.com/rocky-roll-call/rrc-backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	eventRepo := events.NewRepository(pool)
	eventService := events.NewService(eventRepo, nil, events.Defaults{
		UpcomingDays:  cfg.Events.UpcomingDays,
		UpcomingLimit: cfg.Events.UpcomingLimit,
	}, time.Now, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEventSweeper(eventService, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Schedule(workerCtx, jobQueue, cfg.Worker.SweepInterval, logger)
	go processor.Run(workerCtx)
	logger.Info("worker started", zap.Duration("sweep_interval", cfg.Worker.SweepInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
