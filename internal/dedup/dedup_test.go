package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemorySeenAndRegister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(time.Hour)

	seen, err := m.Seen(ctx, "alpha", "hash1")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, m.Register(ctx, "alpha", "hash1"))

	seen, err = m.Seen(ctx, "alpha", "hash1")
	require.NoError(t, err)
	require.True(t, seen)

	// Same hash under a different source is not a duplicate.
	seen, err = m.Seen(ctx, "beta", "hash1")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestMemoryPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(time.Hour)
	require.NoError(t, m.Register(ctx, "alpha", "old"))

	removed, err := m.Prune(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	seen, err := m.Seen(ctx, "alpha", "old")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestLayeredWarmsFrontFromDurable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	durable := NewMemory(time.Hour)
	require.NoError(t, durable.Register(ctx, "alpha", "persisted"))

	l := NewLayered(durable, time.Hour)

	seen, err := l.Seen(ctx, "alpha", "persisted")
	require.NoError(t, err)
	require.True(t, seen)

	// Now cached in the front layer.
	seen, err = l.front.Seen(ctx, "alpha", "persisted")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestLayeredRegisterWritesBothLayers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	durable := NewMemory(time.Hour)
	l := NewLayered(durable, time.Hour)

	require.NoError(t, l.Register(ctx, "alpha", "fresh"))

	seen, err := durable.Seen(ctx, "alpha", "fresh")
	require.NoError(t, err)
	require.True(t, seen)
}
