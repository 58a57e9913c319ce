package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/pushmint/notify-api/internal/config"
	"github.com/pushmint/notify-api/internal/handler"
	notificationHandler "github.com/pushmint/notify-api/internal/handler/notification"
	"github.com/pushmint/notify-api/internal/middleware"
	"github.com/pushmint/notify-api/internal/push"
	"github.com/pushmint/notify-api/internal/repository/postgres"
	"github.com/pushmint/notify-api/internal/router"
	"github.com/pushmint/notify-api/internal/service/dispatch"
	notificationService "github.com/pushmint/notify-api/internal/service/notification"
	"github.com/pushmint/notify-api/pkg/auth"
	"github.com/pushmint/notify-api/pkg/logger"
	"github.com/pushmint/notify-api/pkg/messaging"
	redisbroker "github.com/pushmint/notify-api/pkg/messaging/redis"
	"github.com/pushmint/notify-api/pkg/metrics"
	"github.com/pushmint/notify-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{Level: logger.InfoLevel})
	log.Logger = appLogger.ZL

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	notifRepo := postgres.NewNotificationRepository(baseRepo)
	userRepo := postgres.NewUserRepository(baseRepo)
	settingsRepo := postgres.NewSettingsRepository(baseRepo)

	// Dispatch lifecycle events go out on Redis; the API still serves
	// without it.
	var broker messaging.Broker
	if b, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, dispatch events disabled")
	} else {
		broker = b
		defer broker.Close()
	}

	m := metrics.NewMetrics("notify", "api")

	// Dispatch pipeline
	settingsProvider := push.NewSettingsProvider(settingsRepo, cfg.Push.SettingsCacheTTL)
	gateway := push.NewFCMGateway(settingsProvider, push.FCMConfig{
		Endpoint:        cfg.Push.Endpoint,
		RequestTimeout:  cfg.Push.RequestTimeout,
		BreakerFailures: cfg.Push.BreakerFailures,
		BreakerTimeout:  cfg.Push.BreakerTimeout,
	})
	recorder := dispatch.NewRecorder(notifRepo)
	dispatcher := dispatch.NewDispatcher(notifRepo, userRepo, gateway, recorder, broker, appLogger, m, dispatch.Config{
		Concurrency: cfg.Poller.Concurrency,
	})

	// Services
	notifSvc := notificationService.NewService(notifRepo, dispatcher, appLogger)

	// Middleware
	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc, security.NewBcryptHasher(0), cfg.Auth.APIKeyHash)

	// Handlers
	h := handler.NewHandler(db)
	notifHandler := notificationHandler.NewHandler(notifSvc)

	r := router.NewRouter(authMiddleware, notifHandler, h, router.Config{
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		MetricsPrefix:  "notify_api",
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
