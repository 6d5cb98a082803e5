// Package main runs the Preview Wakeup Job (C9) as a standalone process,
// for deployments that split it from the webhook server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edurecord/pipeline/config"
	"github.com/edurecord/pipeline/internal/cache"
	"github.com/edurecord/pipeline/internal/recordings"
	"github.com/edurecord/pipeline/internal/uploader"
	"github.com/edurecord/pipeline/internal/wakeup"
	"github.com/edurecord/pipeline/pkg/database"
	"github.com/edurecord/pipeline/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	recordingsRepo := recordings.NewRepository(pool)
	cacheStore := cache.NewStore(rdb.Client, logger)
	ul := uploader.New(uploader.Config{
		BaseURL:   cfg.Storage.BaseURL,
		FolderID:  cfg.Storage.FolderID,
		ChunkSize: int64(cfg.Storage.ChunkSizeMB) << 20,
		AuthToken: cfg.Storage.AuthToken,
	}, logger)

	job := wakeup.New(recordingsRepo, ul, cacheStore, wakeup.DefaultConfig(), logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go job.Run(workerCtx)
	logger.Info("wakeup worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	logger.Info("wakeup worker stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
