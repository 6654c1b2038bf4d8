package queue

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPush_PreservesOrder(t *testing.T) {
	q := New(100, zerolog.Nop())

	for i := 0; i < 10; i++ {
		q.Push(Entry{Insert: &InsertEntry{ID: string(rune('a' + i))}})
	}

	drained := q.Drain()
	require.Len(t, drained, 10)
	for i, e := range drained {
		require.Equal(t, string(rune('a'+i)), e.Insert.ID)
	}
}

func TestDrain_EmptyReturnsNil(t *testing.T) {
	q := New(100, zerolog.Nop())
	require.Nil(t, q.Drain())
}

func TestPush_AtHardCapDropsOldest(t *testing.T) {
	q := New(HardCap+1, zerolog.Nop()) // threshold above cap so early-drain never fires

	for i := 0; i < HardCap+5; i++ {
		q.Push(Entry{Insert: &InsertEntry{ID: string(rune(i))}})
	}

	require.Equal(t, HardCap, q.Len(), "queue must never exceed the hard cap")

	drained := q.Drain()
	require.Len(t, drained, HardCap)
	// the first 5 pushed entries should have been evicted
	require.Equal(t, string(rune(5)), drained[0].Insert.ID)
}

func TestWait_WakesOnThreshold(t *testing.T) {
	q := New(3, zerolog.Nop())

	done := make(chan []Entry, 1)
	go func() {
		done <- q.Wait(time.Second)
	}()

	q.Push(Entry{Insert: &InsertEntry{ID: "1"}})
	q.Push(Entry{Insert: &InsertEntry{ID: "2"}})
	q.Push(Entry{Insert: &InsertEntry{ID: "3"}})

	select {
	case drained := <-done:
		require.Len(t, drained, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not wake on threshold crossing")
	}
}

func TestWait_WakesOnTimeout(t *testing.T) {
	q := New(100, zerolog.Nop())

	start := time.Now()
	drained := q.Wait(50 * time.Millisecond)
	require.Nil(t, drained)
	require.WithinDuration(t, start.Add(50*time.Millisecond), time.Now(), 100*time.Millisecond)
}

func TestWait_FinalDrainAfterTimeoutIncludesLateEntries(t *testing.T) {
	q := New(100, zerolog.Nop())
	q.Push(Entry{Insert: &InsertEntry{ID: "only"}})

	drained := q.Wait(20 * time.Millisecond)
	require.Len(t, drained, 1)
	require.Equal(t, "only", drained[0].Insert.ID)
}
