package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mova-app/widget-tasks/internal/domain"
)

// loginRequiredMessage is shown on the widget when no credentials are
// stored. The submission is queued, not dropped.
const loginRequiredMessage = "Please log in to Mova first"

// DispatcherConfig holds the queue policy the dispatcher applies while
// re-driving pending entries.
type DispatcherConfig struct {
	// MaxRetries is the per-entry replay budget; entries at or past it
	// are inert.
	MaxRetries int

	// PendingTTL is how long an exhausted entry is retained before the
	// re-drive pass prunes it. Zero disables pruning.
	PendingTTL time.Duration
}

// DefaultDispatcherConfig returns the production queue policy.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxRetries: 3,
		PendingTTL: 30 * 24 * time.Hour,
	}
}

// Dispatcher is the entry point the host process invokes. It maps an
// action name onto orchestrator and queue calls and always answers with
// a structured Result; no error or panic escapes to the host.
type Dispatcher struct {
	credentials CredentialReader
	queue       Queue
	submitter   Submitter
	config      DispatcherConfig
	logger      *slog.Logger
}

// NewDispatcher wires the dispatcher against its collaborators.
func NewDispatcher(
	credentials CredentialReader,
	queue Queue,
	submitter Submitter,
	config DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		credentials: credentials,
		queue:       queue,
		submitter:   submitter,
		config:      config,
		logger:      logger,
	}
}

// Handle runs one host invocation. Unknown actions answer
// unknown_action without side effects; a malformed SUBMIT_TODO payload
// (blank text) is treated the same way.
func (d *Dispatcher) Handle(ctx context.Context, action string, payload Payload) (result Result) {
	logger := d.logger.With(
		"invocation_id", uuid.NewString(),
		"action", action)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("task handler panicked", "panic", fmt.Sprintf("%v", r))
			result = Result{Status: StatusUnknownAction, Error: "internal error"}
		}
	}()

	switch action {
	case ActionSubmitTodo:
		if payload.Text == "" {
			logger.Warn("submit action without text payload")
			return Result{Status: StatusUnknownAction, Error: "text payload is required"}
		}
		return d.handleSubmit(ctx, logger, payload.Text)

	case ActionRetryPending:
		return d.handleRetryPending(ctx, logger)

	default:
		logger.Warn("unrecognized action")
		return Result{Status: StatusUnknownAction}
	}
}

// handleSubmit delivers freshly submitted widget text. The text is
// queued before the first delivery attempt and removed only once the
// server confirms, so it is never dropped.
func (d *Dispatcher) handleSubmit(ctx context.Context, logger *slog.Logger, text string) Result {
	creds := d.credentials.Get(ctx)
	if !creds.Complete() {
		// Deliberate: an unauthenticated submission is queued for the
		// next successful re-drive, not discarded.
		if _, err := d.queue.Enqueue(ctx, text); err != nil {
			// Documented, accepted risk: a failed enqueue here loses
			// the text. Log it; the task has no user to ask.
			logger.Error("failed to queue unauthenticated submission", "error", err)
		}
		return Result{Status: StatusNoAuth, Message: loginRequiredMessage}
	}

	// Queue first, deliver second: the retry loop sleeps for tens of
	// seconds and the host may kill the process mid-sleep, so the text
	// must be durable before the first wait. A kill between delivery
	// and removal re-delivers the entry next cycle, the same
	// at-least-once risk the re-drive already accepts.
	entry, enqueueErr := d.queue.Enqueue(ctx, text)
	if enqueueErr != nil {
		// With the store broken the text is only as durable as this
		// process. Still attempt delivery; it may well succeed.
		logger.Error("failed to queue submission before delivery", "error", enqueueErr)
	}

	outcome := d.submitter.SubmitWithRetry(ctx, creds, text)
	if outcome.Success {
		if enqueueErr == nil {
			if err := d.queue.Remove(ctx, entry.Timestamp); err != nil {
				logger.Warn("failed to remove delivered entry",
					"timestamp", entry.Timestamp,
					"error", err)
			}
		}
		logger.Info("submission delivered")
		// Catch up while the server is known reachable. Best-effort;
		// the fresh submission's result is already decided.
		d.redrivePending(ctx, logger, creds)
		return Result{Status: StatusSuccess}
	}

	logger.Info("submission queued for later delivery", "reason", outcome.Error)
	return Result{Status: StatusQueued, Error: outcome.Error}
}

// handleRetryPending replays the queue and always reports
// retry_complete; per-entry outcomes are visible only in logs and queue
// state.
func (d *Dispatcher) handleRetryPending(ctx context.Context, logger *slog.Logger) Result {
	if _, err := d.queue.PruneExhausted(ctx, d.config.MaxRetries, d.config.PendingTTL); err != nil {
		logger.Warn("failed to prune exhausted entries", "error", err)
	}

	creds := d.credentials.Get(ctx)
	if !creds.Complete() {
		// Nothing is deliverable without credentials; entries stay put.
		logger.Info("skipping re-drive, no credentials stored")
		return Result{Status: StatusRetryComplete}
	}

	d.redrivePending(ctx, logger, creds)
	return Result{Status: StatusRetryComplete}
}

// redrivePending replays every entry still inside its retry budget, in
// insertion order. Entries are independent: one failure neither blocks
// nor fails the others.
func (d *Dispatcher) redrivePending(ctx context.Context, logger *slog.Logger, creds domain.Credentials) {
	entries, err := d.queue.ListAll(ctx)
	if err != nil {
		// Fail safe: a broken read behaves like an empty queue and the
		// entries get another chance next cycle.
		logger.Warn("failed to read pending queue", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.Exhausted(d.config.MaxRetries) {
			logger.Debug("skipping exhausted entry",
				"timestamp", entry.Timestamp,
				"retry_count", entry.RetryCount)
			continue
		}

		outcome := d.submitter.SubmitWithRetry(ctx, creds, entry.Text)
		if outcome.Success {
			if err := d.queue.Remove(ctx, entry.Timestamp); err != nil {
				// The entry may be delivered twice next cycle; this is
				// the accepted at-least-once risk.
				logger.Warn("failed to remove delivered entry",
					"timestamp", entry.Timestamp,
					"error", err)
			}
			continue
		}

		if err := d.queue.IncrementRetry(ctx, entry.Timestamp); err != nil {
			logger.Warn("failed to increment retry count",
				"timestamp", entry.Timestamp,
				"error", err)
		}
		logger.Info("pending entry failed again",
			"timestamp", entry.Timestamp,
			"retry_count", entry.RetryCount+1,
			"reason", outcome.Error)
	}
}
