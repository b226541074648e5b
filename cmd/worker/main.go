package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/script-runner/internal/config"
	"github.com/jwebster45206/script-runner/internal/logger"
	"github.com/jwebster45206/script-runner/internal/services"
	"github.com/jwebster45206/script-runner/internal/services/events"
	"github.com/jwebster45206/script-runner/internal/services/queue"
	"github.com/jwebster45206/script-runner/internal/storage"
	"github.com/jwebster45206/script-runner/internal/worker"
	"github.com/jwebster45206/script-runner/pkg/executor"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Script Runner Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"state_backend", cfg.StateBackend)

	if err := cfg.RequireGameAPI(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize queue service
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	runQueue := queue.NewRunQueue(queueClient, log)
	log.Info("Queue service initialized successfully")

	// Initialize storage service
	storageService, err := storage.New(cfg, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer storageService.Close()

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if rs, ok := storageService.(*storage.RedisStorage); ok {
		err = rs.WaitForConnection(storageCtx)
	} else {
		err = storageService.Ping(storageCtx)
	}
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	// Map and item lookups are shared by every worker through Redis.
	api := services.NewCachedGameData(
		services.NewArtifactsClient(cfg.ArtifactsAPIURL, cfg.ArtifactsToken, log),
		services.NewRedisCacheWithClient(queueClient.GetRedisClient(), log),
		cfg.GameDataTTL,
		log,
	)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)

	processor := worker.NewScriptProcessor(api, storageService, broadcaster, log,
		executor.WithMaxIterations(cfg.MaxLoopIterations),
		executor.WithCooldownMargin(cfg.CooldownMargin),
	)

	w := worker.New(runQueue, processor, queueClient.GetRedisClient(), log, cfg.WorkerID)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- w.Start()
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	select {
	case <-quit:
		log.Info("Worker shutdown signal received")
	case err := <-done:
		log.Error("Worker error", "error", err)
		os.Exit(1)
	}

	// Pauses the running script; the in-flight action is allowed to finish.
	w.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Minute):
		log.Warn("Worker did not finish in time")
	}

	log.Info("Worker exited")
}
