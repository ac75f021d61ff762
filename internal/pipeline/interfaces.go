package pipeline

import (
	"context"
	"time"
)

// Fetcher retrieves one URL and returns the page plus metadata. Retry policy
// is the caller's concern, not the fetcher's.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// RateLimiter gates requests per source. Acquire blocks until a token is
// available or the context ends; it never fails for any other reason.
type RateLimiter interface {
	Acquire(ctx context.Context, source string) error
}

// Deduplicator suppresses documents whose content hash was already seen for
// the same source within the retention window.
type Deduplicator interface {
	Seen(ctx context.Context, source, hash string) (bool, error)
	Register(ctx context.Context, source, hash string) error
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// DocumentStore persists extracted documents. Save reports whether the row
// was actually stored; a false return with nil error means the storage-level
// (source, content_hash) constraint suppressed a duplicate.
type DocumentStore interface {
	Save(ctx context.Context, doc Document) (bool, error)
	ListRecent(ctx context.Context, source string, limit int) ([]Document, error)
}

// JobStore persists scheduled jobs across restarts.
type JobStore interface {
	UpsertJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	Health(ctx context.Context) HealthReport
}

// Archive writes raw fetched artifacts and returns a URI.
type Archive interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes new-document events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces document and job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
