// Package writer implements the background batch writer: the long-running
// task that drains the write queue on a size-or-timeout trigger and
// commits each drained batch as one store transaction.
package writer

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkowalski/ulidmq/pkg/queue"
	"github.com/dkowalski/ulidmq/pkg/store"
)

// Config holds the writer's tunables, sourced from the plugin's option
// list (spec.md §6: flush_interval). The batch_size threshold is held by
// the queue, whose Ready signal wakes the writer early.
type Config struct {
	FlushInterval time.Duration
}

// Writer drains q into s on a loop and is the sole owner of the store's
// write path while running; the retention sweeper and the event handler's
// latest-id lookup also call the store, and all of them are serialized
// through the store's own mutex.
type Writer struct {
	cfg   Config
	queue *queue.Queue
	store *store.Store
	log   zerolog.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

// New constructs a writer bound to q and s. Start must be called to launch
// the background goroutine.
func New(cfg Config, q *queue.Queue, s *store.Store, log zerolog.Logger) *Writer {
	return &Writer{
		cfg:   cfg,
		queue: q,
		store: s,
		log:   log.With().Str("component", "writer").Logger(),
		stop:  make(chan struct{}),
	}
}

// Start launches the worker goroutine. Part of the init substep that, on
// failure, must unwind everything acquired before it (spec.md §4.8).
func (w *Writer) Start() {
	w.log.Info().Dur("flush_interval", w.cfg.FlushInterval).Msg("starting batch writer")
	w.wg.Add(1)
	go w.run()
}

// Stop signals the worker to perform one final, untimed drain and waits for
// it to finish. Per spec.md §5, the final drain has no timeout — the
// publish thread has already stopped being invoked by the time Stop is
// called, so there is nothing left to race against.
func (w *Writer) Stop() {
	close(w.stop)
	w.wg.Wait()
	w.log.Info().Msg("batch writer stopped")
}

func (w *Writer) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			w.flush(context.Background(), w.queue.Drain())
			return
		case <-w.queue.Ready():
			w.flush(context.Background(), w.queue.Drain())
		case <-ticker.C:
			w.flush(context.Background(), w.queue.Drain())
		}
	}
}

func (w *Writer) flush(ctx context.Context, entries []queue.Entry) {
	if len(entries) == 0 {
		return
	}

	ops := make([]store.Op, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Insert != nil:
			ops = append(ops, store.InsertOp{Row: store.Row{
				ID:      e.Insert.ID,
				Topic:   e.Insert.Topic,
				Payload: e.Insert.Payload,
				Retain:  e.Insert.Retain,
				QoS:     e.Insert.QoS,
				Headers: headersToNullString(e.Insert),
			}})
		case e.Delete != nil:
			ops = append(ops, store.DeleteOp{Topic: e.Delete.Topic, ID: e.Delete.ID})
		}
	}

	n, err := w.store.ExecuteBatch(ctx, ops)
	if err != nil {
		w.log.Error().Err(err).Int("batch_size", len(ops)).Msg("batch commit failed, dropping batch")
		return
	}
	w.log.Debug().Int("batch_size", len(ops)).Int("applied", n).Msg("flushed batch")
}

func headersToNullString(ins *queue.InsertEntry) sql.NullString {
	if !ins.HasHdrs {
		return sql.NullString{}
	}
	return sql.NullString{String: ins.Headers, Valid: true}
}
