// Package main runs the standalone email worker that renders and sends ticket emails.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/ticketing/config"
	"github.com/aura-events/ticketing/internal/emaillogs"
	"github.com/aura-events/ticketing/internal/notify"
	"github.com/aura-events/ticketing/internal/participants"
	"github.com/aura-events/ticketing/internal/settings"
	"github.com/aura-events/ticketing/internal/worker"
	"github.com/aura-events/ticketing/pkg/database"
	"github.com/aura-events/ticketing/pkg/qrcode"
	"github.com/aura-events/ticketing/pkg/queue"
	"github.com/aura-events/ticketing/pkg/redis"
	"github.com/aura-events/ticketing/pkg/storage"
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

	var artifacts storage.Store = storage.NewPostgres(pool, cfg.Server.PublicBaseURL)
	if cfg.AWS.QRBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.QRBucket,
			PublicRead:      cfg.AWS.PublicRead,
			MediaBaseURL:    cfg.Server.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		artifacts = s3Client
	}

	settingsRepo := settings.NewRepository(pool)
	// No notifier: the worker only reads tickets and re-renders missing QR images.
	registry := participants.NewRegistry(participants.NewRepository(pool), settingsRepo, qrcode.NewCodec(cfg.QR.Size), artifacts, nil, logger)

	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.Fatal("templates", zap.Error(err))
	}
	transport, err := notify.NewSMTPTransport(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPass,
		Timeout:  time.Duration(cfg.Email.TimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("smtp", zap.Error(err))
	}
	sender := notify.NewSender(transport, cfg.Email.FromAddress, cfg.Email.FromName, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(jobQueue, registry, settingsRepo, emaillogs.NewRepository(pool), renderer, sender, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

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
