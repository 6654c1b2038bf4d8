package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c, err := NewMemoryCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "x")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "x", "01AAAAAAAAAAAAAAAAAAAAAAAA"))
	id, ok, err := c.Get(ctx, "x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "01AAAAAAAAAAAAAAAAAAAAAAAA", id)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewMemoryCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "2"))
	// touch "a" so "b" becomes least recently used
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", "3"))

	_, ok, _ := c.Get(ctx, "b")
	require.False(t, ok, "b should have been evicted")

	_, ok, _ = c.Get(ctx, "a")
	require.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	require.True(t, ok)
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c, err := NewMemoryCache(10)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "x", "1"))
	require.NoError(t, c.Invalidate(ctx, "x"))

	_, ok, err := c.Get(ctx, "x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCache_RejectsNonPositiveSize(t *testing.T) {
	_, err := NewMemoryCache(0)
	require.Error(t, err)
}

func TestMemoryCache_SetOverwritesExisting(t *testing.T) {
	c, err := NewMemoryCache(10)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "x", "1"))
	require.NoError(t, c.Set(ctx, "x", "2"))

	id, ok, err := c.Get(ctx, "x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", id)
}
