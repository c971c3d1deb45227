// Mazebench server — accepts trigger events over HTTP, runs queue
// workers that drive LLM agents through grid mazes, and records every
// action for post-hoc analysis.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mazebench/mazebench/pkg/api"
	"github.com/mazebench/mazebench/pkg/cleanup"
	"github.com/mazebench/mazebench/pkg/config"
	"github.com/mazebench/mazebench/pkg/database"
	"github.com/mazebench/mazebench/pkg/queue"
	"github.com/mazebench/mazebench/pkg/store"
	"github.com/mazebench/mazebench/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	podID := resolvePodID()

	slog.Info("Starting mazebench",
		"version", version.Full(),
		"pod_id", podID,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize database (runs pending migrations)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient.Pool())

	// 3. Release triggers this pod left claimed before a previous crash.
	// Orphaned RUNNING experiments are handled by the heartbeat sweeper.
	if err := queue.RecoverStartupTriggers(ctx, st, podID); err != nil {
		slog.Error("Failed to recover startup triggers", "error", err)
		// Non-fatal — continue
	}

	// 4. Create the experiment executor and start the worker pool
	// (before the HTTP server, so claimed triggers have somewhere to go)
	executor := queue.NewExperimentExecutor(cfg, st)
	workerPool := queue.NewWorkerPool(podID, st, cfg.Queue, executor)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 5. Start retention cleanup if any policy is configured
	var cleanupSvc *cleanup.Service
	if cfg.Retention.Enabled() {
		cleanupSvc = cleanup.NewService(cfg.Retention, st)
		cleanupSvc.Start(ctx)
	}

	// 6. Start HTTP server (non-blocking)
	httpServer := api.NewServer(cfg, st, workerPool)
	errCh := make(chan error, 1)
	go func() {
		addr := cfg.API.ListenAddr
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	stats := cfg.Stats()
	slog.Info("Mazebench started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount,
		"providers", stats.Providers,
		"models", stats.Models)

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: drain active experiments, then stop HTTP
	if cleanupSvc != nil {
		cleanupSvc.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded — incomplete experiments will be orphan-recovered")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
