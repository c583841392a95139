package task

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mova-app/widget-tasks/internal/domain"
	"github.com/mova-app/widget-tasks/internal/remote"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func testCreds() domain.Credentials {
	return domain.Credentials{
		ServerURL: "https://mova.example.com",
		Username:  "alice",
		Password:  "s3cret",
	}
}

// newTestOrchestrator returns an orchestrator with an instant sleep
// that records the requested delays.
func newTestOrchestrator(client SubmissionClient) (*Orchestrator, *[]time.Duration) {
	orch := NewOrchestrator(client, DefaultRetryConfig(), setupTestLogger())
	sleeps := &[]time.Duration{}
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return orch, sleeps
}

func TestSubmitWithRetrySucceedsFirstAttempt(t *testing.T) {
	client := &mockClient{outcomes: []remote.Outcome{{Kind: remote.OutcomeSuccess}}}
	orch, sleeps := newTestOrchestrator(client)

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, client.submitCalls)
	assert.Zero(t, client.restartCalls)
	assert.Empty(t, *sleeps)
}

func TestSubmitWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	client := &mockClient{outcomes: []remote.Outcome{
		{Kind: remote.OutcomeOtherFailure, Reason: "http_500"},
		{Kind: remote.OutcomeOtherFailure, Reason: "network_error"},
		{Kind: remote.OutcomeSuccess},
	}}
	orch, sleeps := newTestOrchestrator(client)

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.True(t, result.Success)
	assert.Equal(t, 3, client.submitCalls)
	assert.Zero(t, client.restartCalls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestSubmitWithRetryNoRetryOnAuthFailure(t *testing.T) {
	client := &mockClient{outcomes: []remote.Outcome{
		{Kind: remote.OutcomeAuthFailure, Reason: "http_401"},
	}}
	orch, sleeps := newTestOrchestrator(client)

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.False(t, result.Success)
	assert.Equal(t, "Authentication failed", result.Error)
	assert.Equal(t, 1, client.submitCalls, "auth failure must be terminal")
	assert.Zero(t, client.restartCalls)
	assert.Empty(t, *sleeps)
}

func TestSubmitWithRetrySingleRestartPerCall(t *testing.T) {
	client := &mockClient{outcomes: []remote.Outcome{
		{Kind: remote.OutcomeServerUnavailable, Reason: "http_503"},
	}}
	orch, sleeps := newTestOrchestrator(client)

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.False(t, result.Success)
	assert.Equal(t, "http_503", result.Error)
	assert.Equal(t, 1, client.restartCalls, "restart fires at most once per call")
	// The restart re-runs attempt 0, so counted attempts stay at three
	// while SubmitOnce runs four times.
	assert.Equal(t, 4, client.submitCalls)
	assert.Equal(t,
		[]time.Duration{10 * time.Second, 2 * time.Second, 4 * time.Second},
		*sleeps)
}

func TestSubmitWithRetryRestartThenSuccess(t *testing.T) {
	client := &mockClient{outcomes: []remote.Outcome{
		{Kind: remote.OutcomeServerUnavailable, Reason: "http_502"},
		{Kind: remote.OutcomeSuccess},
	}}
	orch, sleeps := newTestOrchestrator(client)

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.True(t, result.Success)
	assert.Equal(t, 1, client.restartCalls)
	assert.Equal(t, 2, client.submitCalls)
	assert.Equal(t, []time.Duration{10 * time.Second}, *sleeps)
}

func TestSubmitWithRetryRestartResultIsDiscarded(t *testing.T) {
	// A rejected restart must not change the machine's path.
	client := &mockClient{
		outcomes:      []remote.Outcome{{Kind: remote.OutcomeServerUnavailable, Reason: "http_503"}},
		restartResult: false,
	}
	orch, _ := newTestOrchestrator(client)

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.False(t, result.Success)
	assert.Equal(t, 1, client.restartCalls)
	assert.Equal(t, 4, client.submitCalls)
}

func TestSubmitWithRetryExhaustsBudget(t *testing.T) {
	client := &mockClient{outcomes: []remote.Outcome{
		{Kind: remote.OutcomeOtherFailure, Reason: "http_500"},
		{Kind: remote.OutcomeOtherFailure, Reason: "http_500"},
		{Kind: remote.OutcomeOtherFailure, Reason: "network_error"},
	}}
	orch, sleeps := newTestOrchestrator(client)

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.False(t, result.Success)
	assert.Equal(t, "network_error", result.Error, "last observed error wins")
	assert.Equal(t, 3, client.submitCalls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestSubmitWithRetryCancelledDuringBackoff(t *testing.T) {
	client := &mockClient{outcomes: []remote.Outcome{
		{Kind: remote.OutcomeOtherFailure, Reason: "http_500"},
	}}
	orch := NewOrchestrator(client, DefaultRetryConfig(), setupTestLogger())
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	result := orch.SubmitWithRetry(context.Background(), testCreds(), "buy milk")

	assert.False(t, result.Success)
	assert.Equal(t, "http_500", result.Error)
	assert.Equal(t, 1, client.submitCalls, "a cancelled wait must not start another attempt")
}

func TestSleepCtx(t *testing.T) {
	t.Run("elapses", func(t *testing.T) {
		require.NoError(t, sleepCtx(context.Background(), time.Millisecond))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := sleepCtx(ctx, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTransition(t *testing.T) {
	const maxRetries = 3

	tests := []struct {
		name         string
		outcome      remote.Outcome
		attempt      int
		restartSpent bool
		want         submitState
	}{
		{
			name:    "success is terminal",
			outcome: remote.Outcome{Kind: remote.OutcomeSuccess},
			want:    stateSucceeded,
		},
		{
			name:    "auth failure is terminal",
			outcome: remote.Outcome{Kind: remote.OutcomeAuthFailure},
			want:    stateFailed,
		},
		{
			name:    "first unavailability awaits restart",
			outcome: remote.Outcome{Kind: remote.OutcomeServerUnavailable},
			want:    stateAwaitingRestart,
		},
		{
			name:         "unavailability after spent restart backs off",
			outcome:      remote.Outcome{Kind: remote.OutcomeServerUnavailable},
			restartSpent: true,
			want:         stateBackoff,
		},
		{
			name:         "unavailability on last attempt with spent restart fails",
			outcome:      remote.Outcome{Kind: remote.OutcomeServerUnavailable},
			attempt:      maxRetries - 1,
			restartSpent: true,
			want:         stateFailed,
		},
		{
			name:    "transient failure with attempts left backs off",
			outcome: remote.Outcome{Kind: remote.OutcomeOtherFailure},
			want:    stateBackoff,
		},
		{
			name:    "transient failure on last attempt fails",
			outcome: remote.Outcome{Kind: remote.OutcomeOtherFailure},
			attempt: maxRetries - 1,
			want:    stateFailed,
		},
		{
			name:         "restart does not consume the attempt index",
			outcome:      remote.Outcome{Kind: remote.OutcomeServerUnavailable},
			attempt:      maxRetries - 1,
			restartSpent: false,
			want:         stateAwaitingRestart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transition(tt.outcome, tt.attempt, tt.restartSpent, maxRetries)
			assert.Equal(t, tt.want, got)
		})
	}
}
