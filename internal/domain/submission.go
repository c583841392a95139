package domain

import (
	"errors"
	"time"
)

// ErrEmptySubmissionText is returned when a submission has no text.
var ErrEmptySubmissionText = errors.New("submission text cannot be empty")

// PendingSubmission is a todo submission that could not be delivered
// immediately and awaits a later re-drive. Timestamp is the enqueue time
// in Unix milliseconds and doubles as the entry's identifier: it is
// unique within the queue (the store bumps it on a same-millisecond
// collision) and is used for removal and retry-count updates.
//
// The JSON field names form the persisted wire format under the
// mova_pending_todos key and must not change.
type PendingSubmission struct {
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
	RetryCount int    `json:"retryCount"`
}

// NewPendingSubmission creates a queue entry for the given text with the
// current wall-clock time and a zero retry count.
// Returns an error if the text is empty.
func NewPendingSubmission(text string) (PendingSubmission, error) {
	if text == "" {
		return PendingSubmission{}, ErrEmptySubmissionText
	}

	return PendingSubmission{
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
		RetryCount: 0,
	}, nil
}

// EnqueuedAt returns the enqueue time as a time.Time.
func (p PendingSubmission) EnqueuedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Exhausted reports whether the entry has used up its replay budget.
// Exhausted entries are skipped by the re-drive routine but retained in
// the queue until the TTL-based prune removes them.
func (p PendingSubmission) Exhausted(maxRetries int) bool {
	return p.RetryCount >= maxRetries
}
