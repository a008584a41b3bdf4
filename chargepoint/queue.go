package chargepoint

import (
	"context"
	"encoding/json"
	"errors"
	"evcp/internal"
	"evcp/models"
	"evcp/ocpp"
	"evcp/utility"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultEntryTTL    = 24 * time.Hour
)

// Completion is called with the matched response envelope of a queued request.
// An error counts as a failed delivery attempt.
type Completion func(result *ocpp.CallResult) error

// QueueEntry a queued request with its completion callback
type QueueEntry struct {
	models.EnqueuedRequest
	completion Completion
}

// Delivery sends one entry and runs its completion
type Delivery func(ctx context.Context, entry *QueueEntry) error

// Queue outbound requests created as side effects of remote commands, delivered in FIFO order
type Queue struct {
	mutex       sync.Mutex
	entries     []*QueueEntry
	sequence    uint64
	maxAttempts int
	ttl         time.Duration
	database    internal.Database
	logger      internal.LogHandler
	onAbandon   func(entry *QueueEntry, reason string)
}

func NewQueue(maxAttempts int, ttl time.Duration, logger internal.LogHandler) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &Queue{maxAttempts: maxAttempts, ttl: ttl, logger: logger}
}

func (q *Queue) SetDatabase(database internal.Database) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.database = database
}

// OnAbandon registers the listener called when an entry is given up
func (q *Queue) OnAbandon(fn func(entry *QueueEntry, reason string)) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.onAbandon = fn
}

// Enqueue appends request with status New
func (q *Queue) Enqueue(request ocpp.Request, completion Completion) (*QueueEntry, error) {
	payload, err := ocpp.Canonical(request)
	if err != nil {
		return nil, err
	}
	q.mutex.Lock()
	q.sequence++
	entry := &QueueEntry{
		EnqueuedRequest: models.EnqueuedRequest{
			Id:         utility.NewUUID(),
			Sequence:   q.sequence,
			Command:    request.GetFeatureName(),
			Payload:    json.RawMessage(payload),
			EnqueuedAt: time.Now(),
			Status:     models.QueueStatusNew,
		},
		completion: completion,
	}
	q.entries = append(q.entries, entry)
	q.mutex.Unlock()

	q.persist(entry)
	return entry, nil
}

// Restore puts back entries stored by a previous run; completionFor rebuilds their callbacks
func (q *Queue) Restore(stored []*models.EnqueuedRequest, completionFor func(command string, payload json.RawMessage) Completion) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for _, s := range stored {
		if s.Status == models.QueueStatusFinished {
			continue
		}
		entry := &QueueEntry{EnqueuedRequest: *s, completion: completionFor(s.Command, s.Payload)}
		q.entries = append(q.entries, entry)
		if s.Sequence > q.sequence {
			q.sequence = s.Sequence
		}
	}
}

// Len number of entries not yet finished
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	count := 0
	for _, entry := range q.entries {
		if entry.Status != models.QueueStatusFinished {
			count++
		}
	}
	return count
}

// Entries copies the stored form of all entries in queue order
func (q *Queue) Entries() []models.EnqueuedRequest {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	entries := make([]models.EnqueuedRequest, 0, len(q.entries))
	for _, entry := range q.entries {
		entries = append(entries, entry.EnqueuedRequest)
	}
	return entries
}

func (q *Queue) pending() []*QueueEntry {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	var pending []*QueueEntry
	for _, entry := range q.entries {
		if entry.Status != models.QueueStatusFinished {
			pending = append(pending, entry)
		}
	}
	return pending
}

// Drain delivers pending entries in insertion order. Callers serialize Drain;
// it stops early when the transport is gone.
func (q *Queue) Drain(ctx context.Context, deliver Delivery) (delivered int, failed int) {
	for _, entry := range q.pending() {
		if ctx.Err() != nil {
			break
		}
		if time.Since(entry.EnqueuedAt) > q.ttl {
			q.abandonEntry(entry, "expired")
			continue
		}
		q.update(entry, func(e *QueueEntry) {
			e.Status = models.QueueStatusProcessing
			e.Attempts++
			e.LastAttempt = time.Now()
		})
		err := deliver(ctx, entry)
		if err == nil {
			delivered++
			q.finish(entry)
			continue
		}
		failed++
		attempts := 0
		notSent := errors.Is(err, ErrNotConnected)
		q.update(entry, func(e *QueueEntry) {
			e.LastError = err.Error()
			if notSent {
				// the frame never left, this was not an attempt
				e.Attempts--
			}
			attempts = e.Attempts
		})
		if notSent {
			break
		}
		q.logger.Warn(fmt.Sprintf("queued %s attempt %d failed: %s", entry.Command, attempts, err))
		if attempts >= q.maxAttempts {
			q.abandonEntry(entry, fmt.Sprintf("%d attempts failed", attempts))
		}
	}
	q.compact()
	return delivered, failed
}

func (q *Queue) update(entry *QueueEntry, fn func(e *QueueEntry)) {
	q.mutex.Lock()
	fn(entry)
	q.mutex.Unlock()
	q.persist(entry)
}

func (q *Queue) finish(entry *QueueEntry) {
	q.mutex.Lock()
	entry.Status = models.QueueStatusFinished
	database := q.database
	q.mutex.Unlock()
	if database != nil {
		if err := database.DeleteQueueEntry(entry.Id); err != nil {
			q.logger.Error("deleting queue entry", err)
		}
	}
}

func (q *Queue) abandonEntry(entry *QueueEntry, reason string) {
	q.mutex.Lock()
	entry.Abandoned = true
	listener := q.onAbandon
	q.mutex.Unlock()
	q.logger.Warn(fmt.Sprintf("queued %s %s abandoned: %s", entry.Command, entry.Id, reason))
	if listener != nil {
		guard(q.logger, "queue abandon listener", func() { listener(entry, reason) })
	}
	q.finish(entry)
}

// compact drops finished entries
func (q *Queue) compact() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	kept := q.entries[:0]
	for _, entry := range q.entries {
		if entry.Status != models.QueueStatusFinished {
			kept = append(kept, entry)
		}
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept
}

func (q *Queue) persist(entry *QueueEntry) {
	q.mutex.Lock()
	database := q.database
	stored := entry.EnqueuedRequest
	q.mutex.Unlock()
	if database == nil {
		return
	}
	if err := database.SaveQueueEntry(&stored); err != nil {
		q.logger.Error(fmt.Sprintf("saving queue entry %s", stored.Id), err)
	}
}

// complete runs the completion callback of entry
func (e *QueueEntry) complete(result *ocpp.CallResult) error {
	if e.completion == nil {
		return nil
	}
	return e.completion(result)
}
