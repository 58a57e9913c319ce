package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pushmint/notify-api/internal/config"
	"github.com/pushmint/notify-api/internal/email"
	"github.com/pushmint/notify-api/internal/push"
	"github.com/pushmint/notify-api/internal/repository/postgres"
	"github.com/pushmint/notify-api/internal/service/dispatch"
	"github.com/pushmint/notify-api/internal/worker"
	"github.com/pushmint/notify-api/pkg/logger"
	"github.com/pushmint/notify-api/pkg/messaging"
	redisbroker "github.com/pushmint/notify-api/pkg/messaging/redis"
	"github.com/pushmint/notify-api/pkg/metrics"
)

func setupHealthCheck(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLogger := logger.NewLogger(&logger.Config{Level: logger.InfoLevel})
	log.Logger = appLogger.ZL

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	if b, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL); err != nil {
		appLogger.ZL.Warn().Err(err).Msg("redis unavailable, dispatch events disabled")
	} else {
		broker = b
		defer broker.Close()
	}

	baseRepo := postgres.NewBaseRepository(db)
	notifRepo := postgres.NewNotificationRepository(baseRepo)
	userRepo := postgres.NewUserRepository(baseRepo)
	settingsRepo := postgres.NewSettingsRepository(baseRepo)

	m := metrics.NewMetrics("notify", "worker")

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

	mailer := email.NewService(cfg.SMTP)

	poller := worker.NewPoller(notifRepo, dispatcher, mailer, appLogger, m, worker.PollerConfig{
		Interval: cfg.Poller.Interval,
	})

	setupHealthCheck(cfg.Poller.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.ZL.Info().Msg("shutting down...")
		cancel()
	}()

	poller.Start(ctx)
}
