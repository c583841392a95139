package task

import (
	"context"
	"time"

	"github.com/mova-app/widget-tasks/internal/domain"
	"github.com/mova-app/widget-tasks/internal/remote"
)

// Actions the host may invoke the task handler with.
const (
	// ActionSubmitTodo creates a remote todo from freshly submitted
	// widget text. Requires a non-empty text payload.
	ActionSubmitTodo = "SUBMIT_TODO"

	// ActionRetryPending replays the durable pending queue. Takes no
	// payload.
	ActionRetryPending = "RETRY_PENDING"
)

// Status is the machine-readable outcome of one handler invocation. The
// widget renders its state purely from this value; humans never see raw
// HTTP errors.
type Status string

// Possible task result status values
const (
	StatusSuccess       Status = "success"
	StatusNoAuth        Status = "no_auth"
	StatusQueued        Status = "queued"
	StatusRetryComplete Status = "retry_complete"
	StatusUnknownAction Status = "unknown_action"
)

// Payload carries the action-specific input of one invocation.
type Payload struct {
	Text string `json:"text" validate:"required,min=1"`
}

// Result is the bounded, structured answer the host receives. Every
// code path of the dispatcher produces one; errors are classified into
// Status, never rethrown.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubmitResult is the terminal outcome of one SubmitWithRetry call.
type SubmitResult struct {
	Success bool
	Error   string
}

// SubmissionClient is the slice of the remote API the orchestrator
// drives: one create attempt, and the best-effort restart signal.
// Version: 1.0
type SubmissionClient interface {
	// SubmitOnce performs exactly one create attempt.
	SubmitOnce(ctx context.Context, creds domain.Credentials, text string) remote.Outcome

	// RequestRestart asks the server to recover. Best-effort; callers
	// are expected to discard the result.
	RequestRestart(ctx context.Context, creds domain.Credentials) bool
}

// CredentialReader is the read-only view of the credential store the
// background task gets. Reads fail safe: a broken store looks like "not
// logged in".
// Version: 1.0
type CredentialReader interface {
	Get(ctx context.Context) domain.Credentials
}

// Queue is the durable pending-submission queue the dispatcher drains
// and feeds.
// Version: 1.0
type Queue interface {
	// Enqueue durably stores text and returns the created entry; its
	// timestamp is the handle for Remove and IncrementRetry.
	Enqueue(ctx context.Context, text string) (domain.PendingSubmission, error)
	ListAll(ctx context.Context) ([]domain.PendingSubmission, error)
	Remove(ctx context.Context, id int64) error
	IncrementRetry(ctx context.Context, id int64) error
	PruneExhausted(ctx context.Context, maxRetries int, ttl time.Duration) (int, error)
}

// Submitter drives one submission through the bounded retry policy.
// Version: 1.0
type Submitter interface {
	SubmitWithRetry(ctx context.Context, creds domain.Credentials, text string) SubmitResult
}
