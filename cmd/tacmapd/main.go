package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/cache"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/config"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/fetcher"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/normalizer"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/pipeline"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/reconciler"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/registry"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/server"
)

func main() {
	log := logrus.New()

	if err := run(log); err != nil {
		log.WithField("error", err.Error()).Fatal("Service failed")
	}
}

func run(log *logrus.Logger) error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table := normalizer.NewTable()

	provider, err := registry.NewFileProvider(cfg.RegistryPath, table)
	if err != nil {
		return errors.Wrap(err, "failed to load source registry")
	}
	log.WithFields(logrus.Fields{
		"path":    cfg.RegistryPath,
		"sources": provider.Count(),
	}).Info("Source registry loaded")

	var payloads cache.PayloadCache = cache.Disabled{}
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, log)
		if err != nil {
			return errors.Wrap(err, "failed to connect to payload cache")
		}
		defer redisCache.Close()
		payloads = redisCache
		log.WithField("addr", cfg.RedisAddr).Info("Payload cache enabled")
	}

	orchestrator := pipeline.New(
		fetcher.New(cfg.FetchTimeout, log),
		table,
		payloads,
		cfg.WorkerPool,
		cfg.CycleDeadline,
		log,
	)

	recCfg := reconciler.DefaultConfig()
	recCfg.StaleThreshold = cfg.StaleThreshold

	srv := server.New(provider, orchestrator, recCfg, log)

	if cfg.PollSchedule != "" {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(cfg.PollSchedule, func() {
			if _, err := srv.Aggregate(ctx, registry.Filter{}); err != nil {
				log.WithField("error", err.Error()).Error("Scheduled aggregation failed")
			}
		})
		if err != nil {
			return errors.Wrap(err, "invalid poll schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.WithField("schedule", cfg.PollSchedule).Info("Background aggregation scheduled")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Wrap(httpServer.Shutdown(shutdownCtx), "shutdown failed")
}
