// Package main runs the ticketing HTTP server with the live check-in feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/ticketing/config"
	"github.com/aura-events/ticketing/internal/analytics"
	"github.com/aura-events/ticketing/internal/auth"
	"github.com/aura-events/ticketing/internal/emaillogs"
	"github.com/aura-events/ticketing/internal/middleware"
	"github.com/aura-events/ticketing/internal/notify"
	"github.com/aura-events/ticketing/internal/participants"
	"github.com/aura-events/ticketing/internal/realtime"
	"github.com/aura-events/ticketing/internal/settings"
	"github.com/aura-events/ticketing/internal/worker"
	"github.com/aura-events/ticketing/pkg/database"
	"github.com/aura-events/ticketing/pkg/qrcode"
	"github.com/aura-events/ticketing/pkg/queue"
	"github.com/aura-events/ticketing/pkg/redis"
	"github.com/aura-events/ticketing/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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
			logger.Warn("s3 disabled, storing artifacts in postgres", zap.Error(err))
		} else {
			artifacts = s3Client
		}
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	settingsRepo := settings.NewRepository(pool)

	// Ticket registry
	participantRepo := participants.NewRepository(pool)
	registry := participants.NewRegistry(participantRepo, settingsRepo, qrcode.NewCodec(cfg.QR.Size), artifacts, notify.NewQueueNotifier(jobQueue), logger)
	participantHandler := participants.NewHandler(registry, logger)
	settingsHandler := settings.NewHandler(settingsRepo, artifacts, logger)

	// Live check-in feed, fanned out across instances through Redis
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	registry.SetPublisher(realtime.NewFeed(hub))
	upgrader := realtime.NewUpgrader(config.SplitTrim(cfg.Server.CORSAllowedOrigins, ","))

	// Staff sessions
	jwtService := auth.NewJWTService(cfg.Session.Secret, cfg.Session.ExpireHours)
	sessions := auth.NewSessions(rdb.Client)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, sessions, jwtService, auth.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, logger)

	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo)
	analyticsHandler := analytics.NewHandler(analytics.NewRepository(pool), hub, jobQueue, logger)

	limiter := middleware.NewRateLimiter(rdb.Client, logger)
	staff := middleware.RequireStaff()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.Authenticate(jwtService, sessions, cfg.Session.CookieName, logger))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(ctx); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/media/*key", storage.ServeMedia(artifacts, logger))

	// Session
	router.POST("/login/", middleware.RateLimit(limiter, "login", cfg.RateLimit.LoginPerMinute), authHandler.Login)
	router.POST("/logout/", authHandler.Logout)
	router.GET("/current_user/", authHandler.CurrentUser)

	// Participants
	router.POST("/participants/", middleware.RateLimit(limiter, "register", cfg.RateLimit.RegisterPerMinute), participantHandler.Register)
	admin := router.Group("", staff)
	{
		admin.GET("/participants/", participantHandler.List)
		admin.GET("/participants/:id/", participantHandler.Get)
		admin.PUT("/participants/:id/", participantHandler.Update)
		admin.DELETE("/participants/:id/", participantHandler.Delete)
		admin.POST("/participants/:id/resend/", participantHandler.Resend)
		admin.GET("/participants/:id/emails/", emailLogsHandler.ListByParticipant)

		admin.POST("/verify/image/", participantHandler.VerifyImage)
		admin.GET("/toggle-registration/", participantHandler.GateState)
		admin.POST("/toggle-registration/", participantHandler.Toggle)

		admin.PUT("/event-settings/", settingsHandler.Update)
		admin.POST("/event-settings/logo/", settingsHandler.UploadLogo)

		admin.GET("/analytics/", analyticsHandler.Summary)
		admin.GET("/ws/checkins", realtime.ServeWs(hub, upgrader, logger))
	}

	// Door scanners
	router.POST("/verify/", middleware.RateLimit(limiter, "verify", cfg.RateLimit.VerifyPerMinute), participantHandler.Verify)
	router.GET("/event-settings/", settingsHandler.Get)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Email worker (can also run standalone via cmd/worker)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Worker.InProcess {
		processor, err := newEmailProcessor(cfg, jobQueue, registry, settingsRepo, emailLogsRepo, logger)
		if err != nil {
			logger.Fatal("email worker", zap.Error(err))
		}
		go processor.Run(workerCtx)
		logger.Info("email worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newEmailProcessor(cfg *config.Config, q *queue.Queue, tickets worker.Tickets, events worker.EventSource, logs worker.EmailLogs, logger *zap.Logger) (*worker.EmailProcessor, error) {
	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, err
	}
	transport, err := notify.NewSMTPTransport(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPass,
		Timeout:  time.Duration(cfg.Email.TimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}
	sender := notify.NewSender(transport, cfg.Email.FromAddress, cfg.Email.FromName, logger)
	return worker.NewEmailProcessor(q, tickets, events, logs, renderer, sender, logger), nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
