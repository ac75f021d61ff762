package memory

import (
	"context"
	"sync"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// DocumentStore keeps documents in memory with the same (source, content
// hash) uniqueness rule the Postgres store enforces.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   []pipeline.Document
	unique map[string]bool
}

// NewDocumentStore constructs a DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{unique: make(map[string]bool)}
}

// Save appends the document unless its (source, content hash) pair already
// exists. The false return mirrors ON CONFLICT DO NOTHING.
func (s *DocumentStore) Save(_ context.Context, doc pipeline.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := doc.Source + "\x00" + doc.ContentHash
	if s.unique[key] {
		return false, nil
	}
	s.unique[key] = true
	s.docs = append(s.docs, doc)
	return true, nil
}

// ListRecent returns up to limit documents for a source, newest first.
func (s *DocumentStore) ListRecent(_ context.Context, source string, limit int) ([]pipeline.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Document
	for i := len(s.docs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.docs[i].Source == source {
			out = append(out, s.docs[i])
		}
	}
	return out, nil
}
