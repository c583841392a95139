// Package main implements the widget task daemon, a small local HTTP
// server that accepts task invocations from the widget host and drives
// the offline-resilient submission engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mova-app/widget-tasks/internal/api"
	"github.com/mova-app/widget-tasks/internal/config"
	"github.com/mova-app/widget-tasks/internal/platform/logger"
	"github.com/mova-app/widget-tasks/internal/remote"
	"github.com/mova-app/widget-tasks/internal/store"
	"github.com/mova-app/widget-tasks/internal/task"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("widget-taskd: %v", err)
	}
}

// run wires configuration, storage, and the task engine together and
// serves until interrupted.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("daemon configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_path", cfg.Store.Path)

	kv, err := store.OpenBolt(cfg.Store.Path, cfg.Store.LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			appLogger.Error("failed to close store", "error", err)
		}
	}()

	dispatcher := buildDispatcher(cfg, kv, appLogger)
	handler := api.NewTaskHandler(dispatcher)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("daemon listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		appLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}

	return nil
}

// buildDispatcher assembles the submission engine from configuration.
func buildDispatcher(cfg *config.Config, kv store.KV, appLogger *slog.Logger) *task.Dispatcher {
	credentials := store.NewCredentialStore(kv, appLogger)
	queue := store.NewPendingQueue(kv, appLogger)
	client := remote.NewClient(cfg.Remote.RequestTimeout, appLogger)

	orchestrator := task.NewOrchestrator(client, task.RetryConfig{
		MaxRetries:  cfg.Task.MaxRetries,
		BackoffBase: cfg.Task.BackoffBase,
		RestartWait: cfg.Task.RestartWait,
	}, appLogger)

	return task.NewDispatcher(credentials, queue, orchestrator, task.DispatcherConfig{
		MaxRetries: cfg.Task.MaxRetries,
		PendingTTL: cfg.Task.PendingTTL,
	}, appLogger)
}
