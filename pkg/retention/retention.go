// Package retention implements the periodic sweep that deletes rows older
// than the configured retention horizon. Because ids are time-ordered
// ULIDs, the sweep is a primary-key range delete, not a full scan.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkowalski/ulidmq/pkg/ulid"
)

// Interval is the sweep cadence. Fixed to hourly per spec.md §4.6 — the
// cadence is prose-specified, not configurable.
const Interval = time.Hour

// Horizoner purges rows whose id sorts before a ULID prefix. pkg/store's
// *Store satisfies this.
type Horizoner interface {
	CountOlderThan(ctx context.Context, idPrefix string) (int64, error)
	PurgeOlderThan(ctx context.Context, idPrefix string) (int64, error)
}

// Sweeper runs the retention policy on a ticker independent of the batch
// writer; it still only reaches the store through the same serialized
// adapter the writer uses.
type Sweeper struct {
	horizon time.Duration
	store   Horizoner
	log     zerolog.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

// New constructs a sweeper. horizon <= 0 means the feature is disabled;
// Start becomes a no-op in that case, per spec.md §8's "retention horizon
// of 0: sweeper is inert" boundary behavior.
func New(horizon time.Duration, s Horizoner, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		horizon: horizon,
		store:   s,
		log:     log.With().Str("component", "retention").Logger(),
		stop:    make(chan struct{}),
	}
}

// Start launches the sweep loop, or does nothing if the sweeper is
// disabled.
func (sw *Sweeper) Start() {
	if sw.horizon <= 0 {
		sw.log.Info().Msg("retention disabled, sweeper inert")
		return
	}
	sw.log.Info().Dur("horizon", sw.horizon).Dur("interval", Interval).Msg("starting retention sweeper")
	sw.wg.Add(1)
	go sw.run()
}

// Stop halts the sweep loop. It is safe to call even if the sweeper was
// never started because it was disabled.
func (sw *Sweeper) Stop() {
	if sw.horizon <= 0 {
		return
	}
	close(sw.stop)
	sw.wg.Wait()
}

func (sw *Sweeper) run() {
	defer sw.wg.Done()

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.stop:
			return
		case <-ticker.C:
			sw.sweepOnce()
		}
	}
}

func (sw *Sweeper) sweepOnce() {
	cutoff := time.Now().Add(-sw.horizon)
	prefix := ulid.PrefixForTime(cutoff)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n, err := sw.store.CountOlderThan(ctx, prefix); err == nil && n > 0 {
		sw.log.Info().Int64("candidate_rows", n).Str("cutoff_prefix", prefix).Msg("retention sweep starting")
	}

	n, err := sw.store.PurgeOlderThan(ctx, prefix)
	if err != nil {
		sw.log.Error().Err(err).Msg("retention sweep failed")
		return
	}
	if n > 0 {
		sw.log.Info().Int64("purged", n).Msg("retention sweep complete")
	}
}
