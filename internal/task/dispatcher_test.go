package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mova-app/widget-tasks/internal/domain"
)

// mockCredentialReader returns a fixed credential set.
type mockCredentialReader struct {
	creds domain.Credentials
}

func (m *mockCredentialReader) Get(ctx context.Context) domain.Credentials {
	return m.creds
}

// mockQueue records mutations against an in-memory entry slice. Fresh
// enqueues get timestamps from 1000 up so they never collide with the
// fixture entries tests pre-seed at 100/200/300.
type mockQueue struct {
	entries []domain.PendingSubmission

	enqueued    []string
	removed     []int64
	incremented []int64
	pruneCalls  int

	enqueueErr error
	listErr    error
}

func (m *mockQueue) Enqueue(ctx context.Context, text string) (domain.PendingSubmission, error) {
	if m.enqueueErr != nil {
		return domain.PendingSubmission{}, m.enqueueErr
	}
	entry := domain.PendingSubmission{
		Text:      text,
		Timestamp: int64(1000 + len(m.enqueued)),
	}
	m.enqueued = append(m.enqueued, text)
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *mockQueue) ListAll(ctx context.Context) ([]domain.PendingSubmission, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.PendingSubmission(nil), m.entries...), nil
}

func (m *mockQueue) Remove(ctx context.Context, id int64) error {
	m.removed = append(m.removed, id)
	kept := m.entries[:0]
	for _, entry := range m.entries {
		if entry.Timestamp != id {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
	return nil
}

func (m *mockQueue) IncrementRetry(ctx context.Context, id int64) error {
	m.incremented = append(m.incremented, id)
	return nil
}

func (m *mockQueue) PruneExhausted(ctx context.Context, maxRetries int, ttl time.Duration) (int, error) {
	m.pruneCalls++
	return 0, nil
}

// mockSubmitter answers per-text results and records the texts it saw.
type mockSubmitter struct {
	results   map[string]SubmitResult
	submitted []string
}

func (m *mockSubmitter) SubmitWithRetry(ctx context.Context, creds domain.Credentials, text string) SubmitResult {
	m.submitted = append(m.submitted, text)
	if r, ok := m.results[text]; ok {
		return r
	}
	return SubmitResult{Success: true}
}

func newTestDispatcher(creds domain.Credentials, queue *mockQueue, submitter *mockSubmitter) *Dispatcher {
	return NewDispatcher(
		&mockCredentialReader{creds: creds},
		queue,
		submitter,
		DefaultDispatcherConfig(),
		setupTestLogger(),
	)
}

func TestHandleSubmitWithoutCredentialsQueues(t *testing.T) {
	queue := &mockQueue{}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(domain.Credentials{}, queue, submitter)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	assert.Equal(t, StatusNoAuth, result.Status)
	assert.Equal(t, "Please log in to Mova first", result.Message)
	assert.Equal(t, []string{"buy milk"}, queue.enqueued, "unauthenticated text must be queued, not dropped")
	assert.Empty(t, submitter.submitted, "no delivery may be attempted without credentials")
}

func TestHandleSubmitDeliverySuccess(t *testing.T) {
	queue := &mockQueue{}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []string{"buy milk"}, submitter.submitted)
	// Queued for durability, then removed once the server confirmed.
	assert.Equal(t, []string{"buy milk"}, queue.enqueued)
	assert.Equal(t, []int64{1000}, queue.removed)
	assert.Empty(t, queue.entries, "a delivered submission must not linger in the queue")
}

func TestHandleSubmitTextDurableBeforeDelivery(t *testing.T) {
	// The retry loop can sleep for tens of seconds and the host may
	// kill the process mid-sleep, so the text must already be in the
	// queue when the first delivery attempt starts.
	queue := &mockQueue{}
	submitter := &queueInspectingSubmitter{queue: queue}
	d := NewDispatcher(
		&mockCredentialReader{creds: testCreds()},
		queue,
		submitter,
		DefaultDispatcherConfig(),
		setupTestLogger(),
	)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	require.Equal(t, StatusSuccess, result.Status)
	assert.True(t, submitter.sawDurableText,
		"text must be queued before delivery starts")
	assert.Empty(t, queue.entries)
}

func TestHandleSubmitSuccessDrainsPending(t *testing.T) {
	queue := &mockQueue{entries: []domain.PendingSubmission{
		{Text: "older", Timestamp: 100, RetryCount: 1},
	}}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []string{"buy milk", "older"}, submitter.submitted,
		"a reachable server should trigger an opportunistic drain")
	assert.Equal(t, []int64{1000, 100}, queue.removed)
}

func TestHandleSubmitDeliveryFailureQueues(t *testing.T) {
	queue := &mockQueue{}
	submitter := &mockSubmitter{results: map[string]SubmitResult{
		"buy milk": {Success: false, Error: "network_error"},
	}}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	assert.Equal(t, StatusQueued, result.Status)
	assert.Equal(t, "network_error", result.Error)
	assert.Equal(t, []string{"buy milk"}, queue.enqueued)
	assert.Empty(t, queue.removed, "a failed submission stays queued")
	require.Len(t, queue.entries, 1)
	assert.Zero(t, queue.entries[0].RetryCount)
}

func TestHandleSubmitEnqueueFailureStillAnswers(t *testing.T) {
	queue := &mockQueue{enqueueErr: errors.New("disk full")}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(domain.Credentials{}, queue, submitter)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	assert.Equal(t, StatusNoAuth, result.Status, "a broken queue must not change the answer")
}

func TestHandleSubmitEnqueueFailureStillDelivers(t *testing.T) {
	// A broken store costs durability, not delivery.
	queue := &mockQueue{enqueueErr: errors.New("disk full")}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []string{"buy milk"}, submitter.submitted)
	assert.Empty(t, queue.removed, "nothing was queued, nothing to remove")
}

func TestHandleSubmitEmptyText(t *testing.T) {
	queue := &mockQueue{}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{})

	assert.Equal(t, StatusUnknownAction, result.Status)
	assert.Empty(t, queue.enqueued)
	assert.Empty(t, submitter.submitted)
}

func TestHandleUnknownActionNoSideEffects(t *testing.T) {
	queue := &mockQueue{entries: []domain.PendingSubmission{
		{Text: "older", Timestamp: 100},
	}}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), "REFRESH_WIDGET", Payload{})

	assert.Equal(t, StatusUnknownAction, result.Status)
	assert.Empty(t, submitter.submitted)
	assert.Empty(t, queue.enqueued)
	assert.Empty(t, queue.removed)
	assert.Zero(t, queue.pruneCalls)
}

func TestHandleRetryPendingWithoutCredentials(t *testing.T) {
	queue := &mockQueue{entries: []domain.PendingSubmission{
		{Text: "older", Timestamp: 100},
	}}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(domain.Credentials{}, queue, submitter)

	result := d.Handle(context.Background(), ActionRetryPending, Payload{})

	assert.Equal(t, StatusRetryComplete, result.Status)
	assert.Empty(t, submitter.submitted, "entries must wait for credentials")
	assert.Empty(t, queue.removed)
}

func TestHandleRetryPendingMixedOutcomes(t *testing.T) {
	queue := &mockQueue{entries: []domain.PendingSubmission{
		{Text: "first", Timestamp: 100, RetryCount: 0},
		{Text: "second", Timestamp: 200, RetryCount: 2},
		{Text: "third", Timestamp: 300, RetryCount: 1},
	}}
	submitter := &mockSubmitter{results: map[string]SubmitResult{
		"second": {Success: false, Error: "http_500"},
	}}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionRetryPending, Payload{})

	assert.Equal(t, StatusRetryComplete, result.Status)
	assert.Equal(t, []string{"first", "second", "third"}, submitter.submitted,
		"one entry's failure must not block the rest")
	assert.Equal(t, []int64{100, 300}, queue.removed)
	assert.Equal(t, []int64{200}, queue.incremented)
	assert.Equal(t, 1, queue.pruneCalls)
}

func TestHandleRetryPendingSkipsExhausted(t *testing.T) {
	queue := &mockQueue{entries: []domain.PendingSubmission{
		{Text: "spent", Timestamp: 100, RetryCount: 3},
		{Text: "live", Timestamp: 200, RetryCount: 2},
	}}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionRetryPending, Payload{})

	assert.Equal(t, StatusRetryComplete, result.Status)
	assert.Equal(t, []string{"live"}, submitter.submitted)
	assert.Equal(t, []int64{200}, queue.removed)
	assert.Empty(t, queue.incremented, "exhausted entries stay untouched")
}

func TestHandleRetryPendingListFailure(t *testing.T) {
	queue := &mockQueue{listErr: errors.New("corrupt store")}
	submitter := &mockSubmitter{}
	d := newTestDispatcher(testCreds(), queue, submitter)

	result := d.Handle(context.Background(), ActionRetryPending, Payload{})

	assert.Equal(t, StatusRetryComplete, result.Status, "a broken read behaves like an empty queue")
	assert.Empty(t, submitter.submitted)
}

func TestHandleRecoversFromPanic(t *testing.T) {
	d := NewDispatcher(
		&mockCredentialReader{creds: testCreds()},
		&mockQueue{},
		panickingSubmitter{},
		DefaultDispatcherConfig(),
		setupTestLogger(),
	)

	result := d.Handle(context.Background(), ActionSubmitTodo, Payload{Text: "buy milk"})

	assert.Equal(t, StatusUnknownAction, result.Status)
	assert.Equal(t, "internal error", result.Error)
}

// queueInspectingSubmitter checks whether the submitted text was
// already durable in the queue when delivery started.
type queueInspectingSubmitter struct {
	queue          *mockQueue
	sawDurableText bool
}

func (s *queueInspectingSubmitter) SubmitWithRetry(ctx context.Context, creds domain.Credentials, text string) SubmitResult {
	for _, entry := range s.queue.entries {
		if entry.Text == text {
			s.sawDurableText = true
		}
	}
	return SubmitResult{Success: true}
}

type panickingSubmitter struct{}

func (panickingSubmitter) SubmitWithRetry(ctx context.Context, creds domain.Credentials, text string) SubmitResult {
	panic("boom")
}
