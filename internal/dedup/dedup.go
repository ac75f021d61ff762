// Package dedup suppresses documents whose content was already seen.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Layered composes a fast in-process index in front of a durable one. Seen
// consults memory first; registrations go to both. The durable layer (and
// the storage-level unique constraint behind it) remains the source of
// truth across restarts.
type Layered struct {
	front   *Memory
	durable pipeline.Deduplicator
}

// NewLayered wraps a durable index with an in-memory front.
func NewLayered(durable pipeline.Deduplicator, retention time.Duration) *Layered {
	return &Layered{
		front:   NewMemory(retention),
		durable: durable,
	}
}

// Seen reports whether the hash was already registered for the source.
func (l *Layered) Seen(ctx context.Context, source, hash string) (bool, error) {
	if seen, _ := l.front.Seen(ctx, source, hash); seen {
		return true, nil
	}
	seen, err := l.durable.Seen(ctx, source, hash)
	if err != nil {
		return false, fmt.Errorf("durable dedup lookup: %w", err)
	}
	if seen {
		// Warm the front so repeat lookups stay in-process.
		_ = l.front.Register(ctx, source, hash)
	}
	return seen, nil
}

// Register records the hash in both layers.
func (l *Layered) Register(ctx context.Context, source, hash string) error {
	if err := l.durable.Register(ctx, source, hash); err != nil {
		return fmt.Errorf("durable dedup register: %w", err)
	}
	_ = l.front.Register(ctx, source, hash)
	return nil
}

// Prune drops entries older than the cutoff from both layers and returns
// the number removed from the durable index.
func (l *Layered) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	_, _ = l.front.Prune(ctx, olderThan)
	removed, err := l.durable.Prune(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("durable dedup prune: %w", err)
	}
	return removed, nil
}
