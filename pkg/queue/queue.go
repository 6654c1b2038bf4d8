// Package queue implements the bounded FIFO that decouples the broker's
// publish thread from the background batch writer: one producer, one
// consumer, ordering preserved end to end.
package queue

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HardCap is the absolute maximum number of entries the queue will hold.
// Invariant per spec.md §3.3: producers that would exceed it drop the
// oldest queued entry rather than grow without bound.
const HardCap = 15_000

// Entry is a tagged record: exactly one of Insert or Delete is non-nil.
// Queue entries own their copied strings and bytes so the writer can
// outlive the callback that produced them.
type Entry struct {
	Insert *InsertEntry
	Delete *DeleteEntry
}

// InsertEntry carries every field of a to-be-persisted message row.
type InsertEntry struct {
	ID      string
	Topic   string
	Payload []byte
	Retain  bool
	QoS     uint8
	Headers string
	HasHdrs bool
}

// DeleteEntry carries the (topic, id) pair identifying the row to remove.
type DeleteEntry struct {
	Topic string
	ID    string
}

// Queue is a bounded FIFO with a single producer (the publish thread) and
// a single consumer (the batch writer). The backing slice is protected by
// a mutex; a separate buffered "ready" channel is the wakeup signal, sent
// to (non-blockingly) whenever the configured size threshold is crossed
// so the writer can drain early instead of waiting out the full flush
// interval.
type Queue struct {
	mu      sync.Mutex
	entries []Entry

	threshold int
	ready     chan struct{}

	dropLogGate time.Time
	log         zerolog.Logger
}

// New creates a queue whose early-drain signal fires once len(entries)
// reaches threshold. threshold must be between 1 and HardCap; callers are
// expected to have already clamped it per the option-parsing rules in
// pkg/plugin.
func New(threshold int, log zerolog.Logger) *Queue {
	return &Queue{
		entries:   make([]Entry, 0, threshold*2),
		threshold: threshold,
		ready:     make(chan struct{}, 1),
		log:       log.With().Str("component", "queue").Logger(),
	}
}

// Push appends entry to the tail of the queue. If the queue is already at
// HardCap, the oldest entry is dropped to make room (logging at most once
// per second so a sustained overload does not flood the log). Push never
// blocks indefinitely and never corrupts queue state.
func (q *Queue) Push(e Entry) {
	q.mu.Lock()
	crossedThreshold := false

	if len(q.entries) >= HardCap {
		q.entries = q.entries[1:]
		if now := time.Now(); now.Sub(q.dropLogGate) > time.Second {
			q.log.Warn().Int("cap", HardCap).Msg("write queue at hard cap, dropping oldest entry")
			q.dropLogGate = now
		}
	}

	q.entries = append(q.entries, e)
	if len(q.entries) >= q.threshold {
		crossedThreshold = true
	}
	q.mu.Unlock()

	if crossedThreshold {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Drain removes and returns every entry currently queued, preserving push
// order. The caller takes ownership of the returned slice.
func (q *Queue) Drain() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

func (q *Queue) drainLocked() []Entry {
	if len(q.entries) == 0 {
		return nil
	}
	out := q.entries
	q.entries = make([]Entry, 0, q.threshold*2)
	return out
}

// Wait blocks until either the size threshold is crossed (signaled by
// Push) or timeout elapses, then drains and returns whatever is queued —
// possibly nothing, if woken only by the timer with an empty queue.
func (q *Queue) Wait(timeout time.Duration) []Entry {
	select {
	case <-q.ready:
	case <-time.After(timeout):
	}
	return q.Drain()
}

// Ready returns the channel that receives a value whenever a push crosses
// the size threshold. The batch writer selects on it alongside its flush
// ticker and shutdown signal so it can wake early without giving up the
// ability to also observe shutdown.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}
