package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/linquo/push-dispatch/internal/api"
	"github.com/linquo/push-dispatch/internal/config"
	"github.com/linquo/push-dispatch/internal/db"
	"github.com/linquo/push-dispatch/internal/dispatch"
	"github.com/linquo/push-dispatch/internal/fcm"
	"github.com/linquo/push-dispatch/internal/metrics"
	"github.com/linquo/push-dispatch/internal/ratelimiter"
	"github.com/linquo/push-dispatch/internal/repository"
	"github.com/linquo/push-dispatch/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	notifications := repository.NewPgNotificationRepository(pool)
	tokens := repository.NewPgDeviceTokenRepository(pool)
	gateway := newGateway(cfg, logger)
	limiter := ratelimiter.New(cfg.SendRatePerSec)
	svc := service.NewQueueService(notifications, tokens, logger)

	dispatcher := dispatch.NewDispatcher(
		notifications, tokens, gateway, limiter,
		cfg.BatchSize, logger, m.DispatcherHooks(),
	)

	// ---- optional in-process poller ----
	// Context for background goroutines; cancelled on shutdown signal.
	pollerCtx, cancelPoller := context.WithCancel(ctx)
	defer cancelPoller()

	var pollerWg sync.WaitGroup
	if cfg.DispatchInterval > 0 {
		poller := dispatch.NewPoller(dispatcher, cfg.DispatchInterval, logger)
		pollerWg.Add(1)
		go func() {
			defer pollerWg.Done()
			poller.Run(pollerCtx)
		}()
	} else {
		logger.Info("dispatch poller disabled, batches run on HTTP trigger only")
	}

	// ---- HTTP server ----
	router := api.NewRouter(dispatcher, svc, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("fcm_auth_mode", cfg.FCMAuthMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal the poller to stop and wait for an in-flight batch to finish.
	cancelPoller()
	pollerWg.Wait()

	logger.Info("server stopped cleanly")
}

// newGateway builds the FCM gateway variant selected at deploy time.
// Credential completeness is checked at dispatch time, so a misconfigured
// credential surfaces as a failed invocation rather than a crash loop.
func newGateway(cfg *config.Config, logger *zap.Logger) fcm.Gateway {
	switch cfg.FCMAuthMode {
	case config.AuthModeServiceAccount:
		logger.Info("using FCM v1 API with service account credential")
		return fcm.NewV1Gateway(fcm.ServiceAccount{
			ProjectID:   cfg.FCMProjectID,
			ClientEmail: cfg.FCMClientEmail,
			PrivateKey:  cfg.FCMPrivateKey,
		}, cfg.FCMBaseURL, cfg.FCMTokenURL, cfg.FCMTimeout)
	default:
		logger.Info("using FCM legacy API with static server key")
		return fcm.NewLegacyGateway(cfg.FCMBaseURL, cfg.FCMServerKey, cfg.FCMTimeout)
	}
}
