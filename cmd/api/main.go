package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/script-runner/internal/config"
	"github.com/jwebster45206/script-runner/internal/handlers"
	"github.com/jwebster45206/script-runner/internal/logger"
	"github.com/jwebster45206/script-runner/internal/middleware"
	"github.com/jwebster45206/script-runner/internal/services/events"
	"github.com/jwebster45206/script-runner/internal/services/queue"
	"github.com/jwebster45206/script-runner/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Script Runner API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"state_backend", cfg.StateBackend)

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	runQueue := queue.NewRunQueue(queueClient, log)
	redisClient := queueClient.GetRedisClient()

	storageService, err := storage.New(cfg, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := storageService.Ping(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"redis":   queueClient,
		"storage": storageService,
	}, log)
	mux.Handle("/health", healthHandler)

	mux.Handle("/v1/scripts/validate", handlers.NewScriptsHandler(log))

	broadcaster := events.NewBroadcaster(redisClient, log)
	charactersHandler := handlers.NewCharactersHandler(runQueue, storageService, broadcaster, log)
	mux.Handle("/v1/characters", charactersHandler)
	mux.Handle("/v1/characters/", charactersHandler)

	mux.Handle("/v1/events/characters/", handlers.NewEventsHandler(redisClient, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE endpoint streams indefinitely
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := storageService.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
	if err := queueClient.Close(); err != nil {
		log.Error("Error closing queue client", "error", err)
	}

	log.Info("Server exited")
}
