// Package main runs the recording-ingestion HTTP server: webhook
// admission, the manual retry surface, and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/edurecord/pipeline/config"
	"github.com/edurecord/pipeline/internal/cache"
	"github.com/edurecord/pipeline/internal/courses"
	"github.com/edurecord/pipeline/internal/downloader"
	"github.com/edurecord/pipeline/internal/guard"
	"github.com/edurecord/pipeline/internal/httpapi"
	"github.com/edurecord/pipeline/internal/licenses"
	"github.com/edurecord/pipeline/internal/lms"
	"github.com/edurecord/pipeline/internal/meetings"
	"github.com/edurecord/pipeline/internal/middleware"
	"github.com/edurecord/pipeline/internal/pipeline"
	"github.com/edurecord/pipeline/internal/provider"
	"github.com/edurecord/pipeline/internal/recordings"
	"github.com/edurecord/pipeline/internal/retryengine"
	"github.com/edurecord/pipeline/internal/uploader"
	"github.com/edurecord/pipeline/internal/wakeup"
	"github.com/edurecord/pipeline/internal/webhook"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	meetingsRepo := meetings.NewRepository(pool)
	recordingsRepo := recordings.NewRepository(pool)
	licensesRepo := licenses.NewRepository(pool, logger)
	cacheStore := cache.NewStore(rdb.Client, logger)

	providerClient := provider.New(provider.Config{
		TokenURL:     cfg.Provider.TokenURL,
		APIBaseURL:   cfg.Provider.APIBaseURL,
		AccountID:    cfg.Provider.AccountID,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
	}, logger)

	dl := downloader.New(downloader.Config{
		Timeout:          cfg.Retry.DownloadTimeout,
		MinExpectedBytes: int64(cfg.Retry.MinExpectedSizeMB) << 20,
	}, logger)

	ul := uploader.New(uploader.Config{
		BaseURL:   cfg.Storage.BaseURL,
		FolderID:  cfg.Storage.FolderID,
		ChunkSize: int64(cfg.Storage.ChunkSizeMB) << 20,
		AuthToken: cfg.Storage.AuthToken,
	}, logger)

	lmsClient := lms.New(lms.Config{
		BaseURL:           cfg.LMS.BaseURL,
		Token:             cfg.LMS.Token,
		RequestsPerSecond: rate.Limit(cfg.LMS.RequestsPerSecond),
		Burst:             cfg.LMS.Burst,
	}, logger)

	resolver := courses.New(lmsClient, cacheStore, cfg.Courses.CacheTTL, cfg.Courses.DefaultCourseID, logger)

	pctx := pipeline.NewContext(cfg.Pipeline.UploadConcurrency)
	coordinator := pipeline.New(
		pctx,
		meetingsRepo,
		recordingsRepo,
		licensesRepo,
		resolver,
		dl,
		ul,
		lmsClient,
		providerClient,
		pipeline.Config{
			DownloadsDir:        cfg.Pipeline.DownloadsDir,
			PrepublishDelay:     cfg.Pipeline.PrepublishDelay,
			PreviewPollTimeout:  cfg.Pipeline.PreviewPollTimeout,
			PreviewPollInterval: cfg.Pipeline.PreviewPollInterval,
		},
		logger,
	)

	retryGuard := guard.NewRetryGuard()
	engine := retryengine.New(meetingsRepo, recordingsRepo, resolver, providerClient, coordinator, retryGuard, logger)

	admitter := webhook.New(webhook.Config{
		Secret:           cfg.Webhook.Secret,
		DisableSignature: cfg.Webhook.DisableSignature,
	}, logger)

	webhookHandler := httpapi.NewWebhookHandler(admitter, coordinator, logger)
	adminHandler := httpapi.NewAdminHandler(engine, meetingsRepo, recordingsRepo, providerClient, logger)
	recordingHandler := httpapi.NewRecordingHandler(recordingsRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/healthz", httpapi.Health)
	router.POST("/webhook", webhookHandler.Handle)

	admin := router.Group("/admin")
	admin.Use(middleware.AdminToken(cfg.Admin.Token))
	{
		admin.POST("/recordings/retry", adminHandler.Retry)
		admin.POST("/sync/recordings", adminHandler.Sync)
		admin.GET("/recordings/pending", adminHandler.Pending)
		admin.GET("/recordings/:id", recordingHandler.GetByID)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Preview Wakeup Job runs in-process alongside the webhook server so a
	// single-instance deployment needs no second process (§4.9).
	wakeupJob := wakeup.New(recordingsRepo, ul, cacheStore, wakeup.DefaultConfig(), logger)
	wakeupCtx, wakeupCancel := context.WithCancel(context.Background())
	defer wakeupCancel()
	go wakeupJob.Run(wakeupCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	wakeupCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
