package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mova-app/widget-tasks/internal/domain"
)

// keyPendingQueue holds the JSON array of pending submissions.
const keyPendingQueue = "mova_pending_todos"

// PendingQueue is the durable, ordered list of submissions that could
// not be delivered immediately. Insertion order is arrival order and the
// entry timestamp acts as the primary key. Every operation is one atomic
// KV transaction; the queue as a whole offers no cross-operation
// transaction, which is the accepted at-least-once delivery risk.
type PendingQueue struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
}

// NewPendingQueue creates a PendingQueue on top of the shared KV.
func NewPendingQueue(kv KV, logger *slog.Logger) *PendingQueue {
	return &PendingQueue{
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue appends a new entry with the current wall-clock timestamp and
// a zero retry count, returning the stored entry so callers can remove
// it by timestamp once delivery is confirmed. When two enqueues land in
// the same millisecond the timestamp is bumped past the newest existing
// entry so it stays unique within the queue.
func (q *PendingQueue) Enqueue(ctx context.Context, text string) (domain.PendingSubmission, error) {
	if text == "" {
		return domain.PendingSubmission{}, domain.ErrEmptySubmissionText
	}

	var entry domain.PendingSubmission
	err := q.kv.Update(ctx, keyPendingQueue, func(current []byte, exists bool) ([]byte, error) {
		entries, err := decodeQueue(current, exists)
		if err != nil {
			return nil, err
		}

		entry = domain.PendingSubmission{
			Text:       text,
			Timestamp:  q.now().UnixMilli(),
			RetryCount: 0,
		}
		for _, existing := range entries {
			if existing.Timestamp >= entry.Timestamp {
				entry.Timestamp = existing.Timestamp + 1
			}
		}

		q.logger.Info("submission enqueued",
			"timestamp", entry.Timestamp,
			"queue_len", len(entries)+1)

		return encodeQueue(append(entries, entry))
	})
	if err != nil {
		return domain.PendingSubmission{}, err
	}
	return entry, nil
}

// ListAll returns a snapshot of the queue in insertion order. Reading
// never mutates storage.
func (q *PendingQueue) ListAll(ctx context.Context) ([]domain.PendingSubmission, error) {
	value, err := q.kv.Get(ctx, keyPendingQueue)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return []domain.PendingSubmission{}, nil
		}
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}
	return decodeQueue(value, true)
}

// Remove deletes the entry whose timestamp matches id. Removing an
// absent entry is a no-op, not an error: a previous cycle may already
// have delivered and removed it.
func (q *PendingQueue) Remove(ctx context.Context, id int64) error {
	return q.kv.Update(ctx, keyPendingQueue, func(current []byte, exists bool) ([]byte, error) {
		entries, err := decodeQueue(current, exists)
		if err != nil {
			return nil, err
		}

		kept := entries[:0]
		for _, entry := range entries {
			if entry.Timestamp != id {
				kept = append(kept, entry)
			}
		}
		return encodeQueue(kept)
	})
}

// IncrementRetry adds one to the retry count of the entry whose
// timestamp matches id. Incrementing an absent entry is a no-op.
func (q *PendingQueue) IncrementRetry(ctx context.Context, id int64) error {
	return q.kv.Update(ctx, keyPendingQueue, func(current []byte, exists bool) ([]byte, error) {
		entries, err := decodeQueue(current, exists)
		if err != nil {
			return nil, err
		}

		for i := range entries {
			if entries[i].Timestamp == id {
				entries[i].RetryCount++
				break
			}
		}
		return encodeQueue(entries)
	})
}

// PruneExhausted removes entries that have used up their replay budget
// and have sat in the queue longer than ttl. A zero ttl disables
// pruning. Returns the number of entries removed.
func (q *PendingQueue) PruneExhausted(ctx context.Context, maxRetries int, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	cutoff := q.now().Add(-ttl).UnixMilli()
	pruned := 0

	err := q.kv.Update(ctx, keyPendingQueue, func(current []byte, exists bool) ([]byte, error) {
		entries, err := decodeQueue(current, exists)
		if err != nil {
			return nil, err
		}

		kept := entries[:0]
		for _, entry := range entries {
			if entry.Exhausted(maxRetries) && entry.Timestamp < cutoff {
				pruned++
				continue
			}
			kept = append(kept, entry)
		}
		return encodeQueue(kept)
	})
	if err != nil {
		return 0, err
	}

	if pruned > 0 {
		q.logger.Info("pruned exhausted pending entries",
			"pruned", pruned,
			"ttl", ttl)
	}
	return pruned, nil
}

// decodeQueue parses the persisted JSON array. An absent key is an empty
// queue.
func decodeQueue(value []byte, exists bool) ([]domain.PendingSubmission, error) {
	if !exists || len(value) == 0 {
		return []domain.PendingSubmission{}, nil
	}

	var entries []domain.PendingSubmission
	if err := json.Unmarshal(value, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode pending queue: %w", err)
	}
	return entries, nil
}

// encodeQueue serializes the queue. An empty queue is persisted as an
// empty array rather than deleting the key, so a read-after-drain still
// sees a well-formed value.
func encodeQueue(entries []domain.PendingSubmission) ([]byte, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending queue: %w", err)
	}
	return data, nil
}
