// Package main implements the widget-task command line tool. It drives
// the same submission engine as the daemon, one invocation per run:
// submit a todo, replay the pending queue, or manage stored
// credentials.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mova-app/widget-tasks/internal/config"
	"github.com/mova-app/widget-tasks/internal/domain"
	"github.com/mova-app/widget-tasks/internal/remote"
	"github.com/mova-app/widget-tasks/internal/store"
	"github.com/mova-app/widget-tasks/internal/task"
)

const usage = `usage: widget-task <command> [args]

commands:
  submit <text>       create a todo, queuing it on failure
  retry-pending       replay the pending queue
  login <url> <user>  store credentials; password read from MOVA_PASSWORD
  logout              clear stored credentials
  pending             print the pending queue as JSON
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "widget-task: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Results go to stdout; logs stay on stderr so output is pipeable.
	appLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	}))

	kv, err := store.OpenBolt(cfg.Store.Path, cfg.Store.LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			appLogger.Error("failed to close store", "error", err)
		}
	}()

	ctx := context.Background()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "submit":
		if len(rest) == 0 {
			return errors.New("submit requires the todo text")
		}
		return printResult(dispatch(ctx, cfg, kv, appLogger,
			task.ActionSubmitTodo, task.Payload{Text: strings.Join(rest, " ")}))

	case "retry-pending":
		return printResult(dispatch(ctx, cfg, kv, appLogger,
			task.ActionRetryPending, task.Payload{}))

	case "login":
		return login(ctx, kv, appLogger, rest)

	case "logout":
		return store.NewCredentialStore(kv, appLogger).Clear(ctx)

	case "pending":
		return printPending(ctx, kv, appLogger)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// dispatch runs one engine invocation exactly the way the daemon does.
func dispatch(
	ctx context.Context,
	cfg *config.Config,
	kv store.KV,
	appLogger *slog.Logger,
	action string,
	payload task.Payload,
) task.Result {
	credentials := store.NewCredentialStore(kv, appLogger)
	queue := store.NewPendingQueue(kv, appLogger)
	client := remote.NewClient(cfg.Remote.RequestTimeout, appLogger)

	orchestrator := task.NewOrchestrator(client, task.RetryConfig{
		MaxRetries:  cfg.Task.MaxRetries,
		BackoffBase: cfg.Task.BackoffBase,
		RestartWait: cfg.Task.RestartWait,
	}, appLogger)

	dispatcher := task.NewDispatcher(credentials, queue, orchestrator, task.DispatcherConfig{
		MaxRetries: cfg.Task.MaxRetries,
		PendingTTL: cfg.Task.PendingTTL,
	}, appLogger)

	return dispatcher.Handle(ctx, action, payload)
}

func login(ctx context.Context, kv store.KV, appLogger *slog.Logger, args []string) error {
	if len(args) != 2 {
		return errors.New("login requires <server-url> <username>")
	}
	password := os.Getenv("MOVA_PASSWORD")
	if password == "" {
		return errors.New("set MOVA_PASSWORD before logging in")
	}

	creds, err := domain.NewCredentials(args[0], args[1], password)
	if err != nil {
		return err
	}
	return store.NewCredentialStore(kv, appLogger).Set(ctx, creds)
}

func printPending(ctx context.Context, kv store.KV, appLogger *slog.Logger) error {
	entries, err := store.NewPendingQueue(kv, appLogger).ListAll(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printResult(result task.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
