package task

import (
	"context"

	"github.com/mova-app/widget-tasks/internal/domain"
	"github.com/mova-app/widget-tasks/internal/remote"
)

// mockClient implements SubmissionClient for testing. Outcomes are
// consumed in order; the last one repeats once the script runs out.
type mockClient struct {
	outcomes      []remote.Outcome
	submitCalls   int
	restartCalls  int
	restartResult bool
}

func (m *mockClient) SubmitOnce(ctx context.Context, creds domain.Credentials, text string) remote.Outcome {
	i := m.submitCalls
	if i >= len(m.outcomes) {
		i = len(m.outcomes) - 1
	}
	m.submitCalls++
	return m.outcomes[i]
}

func (m *mockClient) RequestRestart(ctx context.Context, creds domain.Credentials) bool {
	m.restartCalls++
	return m.restartResult
}
