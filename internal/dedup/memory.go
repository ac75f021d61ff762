package dedup

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process seen-hash index bounded by a retention window.
// It backs tests and development mode and serves as the fast layer in
// Layered.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	retention time.Duration
}

// NewMemory builds an index with the given retention window.
func NewMemory(retention time.Duration) *Memory {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &Memory{
		entries:   make(map[string]time.Time),
		retention: retention,
	}
}

// Seen reports whether the hash is registered for the source and still
// within the retention window.
func (m *Memory) Seen(_ context.Context, source, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.entries[key(source, hash)]
	if !ok {
		return false, nil
	}
	return time.Since(at) <= m.retention, nil
}

// Register records the hash for the source.
func (m *Memory) Register(_ context.Context, source, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key(source, hash)] = time.Now()
	return nil
}

// Prune drops entries registered before the cutoff.
func (m *Memory) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for k, at := range m.entries {
		if at.Before(olderThan) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

func key(source, hash string) string {
	return source + "\x00" + hash
}
