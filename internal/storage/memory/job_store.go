// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// JobStore keeps scheduled jobs in a map. It mirrors the Postgres job store
// semantics closely enough to back the scheduler in tests and local runs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]pipeline.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]pipeline.Job)}
}

// UpsertJob inserts or replaces a job row.
func (s *JobStore) UpsertJob(_ context.Context, job pipeline.Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// UpdateJob replaces an existing job row.
func (s *JobStore) UpdateJob(_ context.Context, job pipeline.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return errors.New("job not found")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (pipeline.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.Job{}, errors.New("job not found")
	}
	return job, nil
}

// ListJobs returns all jobs sorted by ID.
func (s *JobStore) ListJobs(_ context.Context) ([]pipeline.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Health always reports a valid connection.
func (s *JobStore) Health(_ context.Context) pipeline.HealthReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pipeline.HealthReport{
		ConnectionValid: true,
		TableExists:     true,
		JobCount:        len(s.jobs),
	}
}
