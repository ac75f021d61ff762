package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// DedupStore persists seen content hashes so duplicate suppression survives
// restarts. Rows older than the retention window are removed by the cleanup
// job via Prune.
type DedupStore struct {
	pool  querier
	table string
	clock pipeline.Clock
}

// NewDedupStore constructs a store over an existing pool.
func NewDedupStore(pool querier, table string, clock pipeline.Clock) (*DedupStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, "seen_hashes")
	if err != nil {
		return nil, err
	}
	return &DedupStore{pool: pool, table: table, clock: clock}, nil
}

// Seen reports whether the hash was already registered for the source.
func (s *DedupStore) Seen(ctx context.Context, source, hash string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE source = $1 AND content_hash = $2)`,
		s.table,
	)
	var seen bool
	if err := s.pool.QueryRow(ctx, query, source, hash).Scan(&seen); err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return seen, nil
}

// Register records the hash. Re-registering is a no-op.
func (s *DedupStore) Register(ctx context.Context, source, hash string) error {
	query := fmt.Sprintf(`
INSERT INTO %s (source, content_hash, first_seen_at)
VALUES ($1, $2, $3)
ON CONFLICT (source, content_hash) DO NOTHING`, s.table)

	if _, err := s.pool.Exec(ctx, query, source, hash, s.now()); err != nil {
		return fmt.Errorf("dedup register: %w", err)
	}
	return nil
}

// Prune deletes hashes first seen before the cutoff.
func (s *DedupStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE first_seen_at < $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("dedup prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *DedupStore) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}
