package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/app/registry"
	"chatrelay/internal/app/server"
	"chatrelay/internal/app/server/handlers"
	"chatrelay/internal/config"
	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/services"
	"chatrelay/internal/platform/logger"
	"chatrelay/internal/platform/telemetry"
	"chatrelay/internal/plugins/blob"
	"chatrelay/internal/plugins/postgres"
	redisPlugin "chatrelay/internal/plugins/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		if otelShutdown == nil {
			return
		}
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	pdb, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	defer pdb.Close()
	log.Info("postgres connected")

	// The history cache is an optimisation: a missing Redis downgrades
	// join replay and the history endpoint to direct Postgres reads.
	var cache contracts.HistoryCache
	if cfg.Redis.Enabled {
		rdb, err := redisPlugin.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis connection failed, history cache disabled", "url", cfg.Redis.URL, "err", err)
		} else {
			defer rdb.Close()
			cache = redisPlugin.NewHistoryCache(rdb, cfg.Redis.HistoryTTL, log)
			log.Info("redis connected")
		}
	}

	// Adapters
	roomRepo := postgres.NewRoomRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	blobStore, err := blob.NewDiskStore(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	// Core services
	reg := registry.New(log)
	hubSvc := services.NewHubService(log, reg, reg, roomRepo, msgRepo, cache,
		cfg.Hub.StoreTimeout, cfg.Hub.HistoryLimit)
	roomSvc := services.NewRoomService(log, roomRepo, cfg.Hub.StoreTimeout)
	uploadSvc := services.NewUploadService(log, blobStore)

	if err := roomSvc.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed default rooms: %w", err)
	}

	// Server
	srv := server.NewServer(log, *cfg,
		handlers.NewWSHandler(hubSvc),
		handlers.NewRoomsHandler(roomSvc, hubSvc),
		handlers.NewUploadHandler(uploadSvc, cfg.Uploads.MaxBytes),
	)
	return srv.Start(ctx)
}
