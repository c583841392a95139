package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/mova-app/widget-tasks/internal/domain"
	"github.com/mova-app/widget-tasks/internal/remote"
)

// authFailedMessage is the user-facing reason for a terminal 401.
const authFailedMessage = "Authentication failed"

// RetryConfig holds the retry policy for a single submission.
type RetryConfig struct {
	// MaxRetries is the number of counted create attempts before the
	// submission is handed to the pending queue.
	MaxRetries int

	// BackoffBase is the delay before the second attempt; each further
	// attempt doubles it.
	BackoffBase time.Duration

	// RestartWait is how long to give the server to come back after a
	// restart request before re-running the same attempt.
	RestartWait time.Duration
}

// DefaultRetryConfig returns the production retry policy: three
// attempts with 2s/4s/8s backoff and a 10s restart grace.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BackoffBase: 2 * time.Second,
		RestartWait: 10 * time.Second,
	}
}

// submitState is one state of the per-submission machine.
type submitState int

const (
	// stateAttempting performs one create attempt.
	stateAttempting submitState = iota

	// stateAwaitingRestart has fired the one restart request and waits
	// for the server to come back; the current attempt index is not
	// consumed.
	stateAwaitingRestart

	// stateBackoff waits BackoffBase*2^attempt, then advances to the
	// next attempt.
	stateBackoff

	// stateSucceeded and stateFailed are terminal.
	stateSucceeded
	stateFailed
)

// transition is the pure decision function of the state machine: given
// the outcome of one attempt, the attempt index, and whether the single
// restart has been spent, it picks the next state. Keeping it pure and
// branch-complete makes the "restart at most once" invariant structural
// instead of a flag buried in a loop.
func transition(outcome remote.Outcome, attempt int, restartSpent bool, maxRetries int) submitState {
	switch outcome.Kind {
	case remote.OutcomeSuccess:
		return stateSucceeded

	case remote.OutcomeAuthFailure:
		// Retrying cannot fix bad credentials.
		return stateFailed

	case remote.OutcomeServerUnavailable:
		if !restartSpent {
			return stateAwaitingRestart
		}
		// Restart already spent: treat like any transient failure.
	}

	if attempt+1 < maxRetries {
		return stateBackoff
	}
	return stateFailed
}

// Orchestrator drives a single submission through the retry policy. It
// holds no per-submission state; each SubmitWithRetry call runs its own
// machine to completion.
type Orchestrator struct {
	client SubmissionClient
	config RetryConfig
	logger *slog.Logger

	// sleep is replaceable in tests so retry schedules can be asserted
	// without wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an Orchestrator with the given client and
// retry policy.
func NewOrchestrator(client SubmissionClient, config RetryConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		config: config,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// SubmitWithRetry attempts to deliver text, retrying transient failures
// up to MaxRetries times with exponential backoff. On the first
// ServerUnavailable it fires one best-effort restart request, waits
// RestartWait, and re-runs the same attempt index; the restart happens
// at most once per call no matter how many attempts follow. Success and
// auth failure are terminal immediately.
//
// All waits watch ctx: the host enforces a wall-clock budget per task
// invocation and may kill it mid-sleep, so a cancelled wait returns a
// failure instead of blocking.
func (o *Orchestrator) SubmitWithRetry(ctx context.Context, creds domain.Credentials, text string) SubmitResult {
	state := stateAttempting
	attempt := 0
	restartSpent := false
	lastError := ""

	for {
		switch state {
		case stateAttempting:
			outcome := o.client.SubmitOnce(ctx, creds, text)
			if outcome.Kind == remote.OutcomeAuthFailure {
				lastError = authFailedMessage
			} else if outcome.Reason != "" {
				lastError = outcome.Reason
			}
			state = transition(outcome, attempt, restartSpent, o.config.MaxRetries)

		case stateAwaitingRestart:
			restartSpent = true
			// Best-effort: the result does not steer the machine.
			_ = o.client.RequestRestart(ctx, creds)
			o.logger.Info("server unavailable, requested restart",
				"attempt", attempt,
				"wait", o.config.RestartWait)
			if err := o.sleep(ctx, o.config.RestartWait); err != nil {
				return SubmitResult{Success: false, Error: cancelReason(lastError)}
			}
			state = stateAttempting

		case stateBackoff:
			delay := o.config.BackoffBase << attempt
			o.logger.Debug("submission attempt failed, backing off",
				"attempt", attempt,
				"reason", lastError,
				"delay", delay)
			if err := o.sleep(ctx, delay); err != nil {
				return SubmitResult{Success: false, Error: cancelReason(lastError)}
			}
			attempt++
			state = stateAttempting

		case stateSucceeded:
			return SubmitResult{Success: true}

		case stateFailed:
			o.logger.Info("submission failed terminally",
				"attempts", attempt+1,
				"reason", lastError)
			return SubmitResult{Success: false, Error: lastError}
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes
// first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cancelReason reports why a cancelled submission failed, preferring
// the last observed delivery error over the bare cancellation.
func cancelReason(lastError string) string {
	if lastError != "" {
		return lastError
	}
	return "cancelled"
}
