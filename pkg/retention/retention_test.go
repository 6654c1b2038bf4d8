package retention

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	countCalls  []string
	purgeCalls  []string
	purgeResult int64
	purgeErr    error
}

func (f *fakeStore) CountOlderThan(_ context.Context, idPrefix string) (int64, error) {
	f.countCalls = append(f.countCalls, idPrefix)
	return f.purgeResult, nil
}

func (f *fakeStore) PurgeOlderThan(_ context.Context, idPrefix string) (int64, error) {
	f.purgeCalls = append(f.purgeCalls, idPrefix)
	return f.purgeResult, f.purgeErr
}

func TestSweepOnce_PurgesWithComputedPrefix(t *testing.T) {
	fs := &fakeStore{purgeResult: 3}
	sw := New(24*time.Hour, fs, zerolog.Nop())

	sw.sweepOnce()

	require.Len(t, fs.purgeCalls, 1)
	require.Len(t, fs.countCalls, 1)
	require.Equal(t, fs.countCalls[0], fs.purgeCalls[0])
}

func TestSweepOnce_LogsButDoesNotPanicOnError(t *testing.T) {
	fs := &fakeStore{purgeErr: context.DeadlineExceeded}
	sw := New(time.Hour, fs, zerolog.Nop())

	require.NotPanics(t, sw.sweepOnce)
}

func TestStart_DisabledWhenHorizonIsZero(t *testing.T) {
	fs := &fakeStore{}
	sw := New(0, fs, zerolog.Nop())

	sw.Start()
	sw.Stop()

	require.Empty(t, fs.purgeCalls, "a zero horizon must never purge")
}

func TestStart_NegativeHorizonAlsoDisabled(t *testing.T) {
	fs := &fakeStore{}
	sw := New(-time.Hour, fs, zerolog.Nop())

	sw.Start()
	sw.Stop()

	require.Empty(t, fs.purgeCalls)
}
