// Package orchestrator runs a full scrape cycle for one source: discovery,
// bounded-concurrency article processing, deduplication and persistence.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tidewire/newsharvest/internal/metrics"
	"github.com/tidewire/newsharvest/internal/pipeline"
)

// unhealthyAfterEmptyCycles marks a source unhealthy once this many cycles in
// a row discover zero candidate URLs.
const unhealthyAfterEmptyCycles = 2

// SourceAdapter is the per-source surface the orchestrator drives.
type SourceAdapter interface {
	Name() string
	Config() pipeline.SourceConfig
	Discover(ctx context.Context) ([]pipeline.CandidateURL, error)
	Extract(page pipeline.Page) (pipeline.Document, error)
}

// Config controls Orchestrator behavior.
type Config struct {
	Concurrency        int
	ArchivePrefix      string
	ArchiveContentType string
	Topic              string
}

// Orchestrator executes scrape cycles. A single instance serves all sources;
// per-source pacing lives in the rate limiter, not here.
type Orchestrator struct {
	fetcher   pipeline.Fetcher
	limiter   pipeline.RateLimiter
	dedup     pipeline.Deduplicator
	docs      pipeline.DocumentStore
	archive   pipeline.Archive
	publisher pipeline.Publisher
	retry     RetryPolicy
	clock     pipeline.Clock
	ids       pipeline.IDGenerator
	cfg       Config
	logger    *zap.Logger

	mu          sync.Mutex
	emptyCycles map[string]int
}

// New constructs an Orchestrator. Archive and publisher may be nil; both are
// best-effort side channels.
func New(
	fetcher pipeline.Fetcher,
	limiter pipeline.RateLimiter,
	dedup pipeline.Deduplicator,
	docs pipeline.DocumentStore,
	archive pipeline.Archive,
	publisher pipeline.Publisher,
	retry RetryPolicy,
	clock pipeline.Clock,
	ids pipeline.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/html; charset=utf-8"
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:     fetcher,
		limiter:     limiter,
		dedup:       dedup,
		docs:        docs,
		archive:     archive,
		publisher:   publisher,
		retry:       retry,
		clock:       clock,
		ids:         ids,
		cfg:         cfg,
		logger:      logger,
		emptyCycles: make(map[string]int),
	}
}

// RunCycle executes one full scrape cycle for the source. Per-URL failures
// are counted, logged and isolated; the error return covers cycle-level
// failures only (context cancellation, discovery aborts).
func (o *Orchestrator) RunCycle(ctx context.Context, adapter SourceAdapter) (pipeline.CycleResult, error) {
	name := adapter.Name()
	logger := o.logger.With(zap.String("source", name))

	metrics.IncActiveCycles()
	defer metrics.DecActiveCycles()

	result := pipeline.CycleResult{Source: name, StartedAt: o.clock.Now()}

	candidates, err := adapter.Discover(ctx)
	if err != nil {
		result.FinishedAt = o.clock.Now()
		o.trackHealth(name, len(candidates), logger)
		return result, fmt.Errorf("discover %s: %w", name, err)
	}
	result.URLsDiscovered = len(candidates)
	o.trackHealth(name, len(candidates), logger)

	logger.Info("cycle started",
		zap.Int("urls_discovered", len(candidates)),
		zap.Int("concurrency", o.cfg.Concurrency),
	)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Concurrency)

	for _, candidate := range candidates {
		group.Go(func() error {
			outcome := o.processURL(groupCtx, adapter, candidate, logger)
			mu.Lock()
			defer mu.Unlock()
			result.URLsAttempted++
			switch outcome {
			case outcomeStored:
				result.URLsSucceeded++
			case outcomePartial:
				result.URLsSucceeded++
				result.Partial++
			case outcomeDuplicate:
				result.DuplicatesSkipped++
			case outcomeFailed:
				result.URLsFailed++
			}
			return groupCtx.Err()
		})
	}

	err = group.Wait()
	result.FinishedAt = o.clock.Now()
	metrics.ObserveCycle(name, result.FinishedAt.Sub(result.StartedAt))

	logger.Info("cycle finished",
		zap.Int("attempted", result.URLsAttempted),
		zap.Int("succeeded", result.URLsSucceeded),
		zap.Int("failed", result.URLsFailed),
		zap.Int("duplicates", result.DuplicatesSkipped),
		zap.Int("partial", result.Partial),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	if err != nil {
		return result, fmt.Errorf("cycle %s: %w", name, err)
	}
	return result, nil
}

type urlOutcome int

const (
	outcomeStored urlOutcome = iota
	outcomePartial
	outcomeDuplicate
	outcomeFailed
)

func (o *Orchestrator) processURL(
	ctx context.Context,
	adapter SourceAdapter,
	candidate pipeline.CandidateURL,
	logger *zap.Logger,
) urlOutcome {
	urlLogger := logger.With(zap.String("url", candidate.URL))

	page, err := o.fetchWithRetry(ctx, adapter.Name(), candidate.URL)
	if err != nil {
		urlLogger.Warn("fetch failed", zap.Error(err))
		return outcomeFailed
	}

	doc, err := adapter.Extract(page)
	if err != nil {
		metrics.ObserveExtractionFailure(adapter.Name())
		urlLogger.Warn("extraction failed", zap.Error(err))
		return outcomeFailed
	}

	seen, err := o.dedup.Seen(ctx, doc.Source, doc.ContentHash)
	if err != nil {
		urlLogger.Error("dedup lookup failed", zap.Error(err))
		return outcomeFailed
	}
	if seen {
		metrics.ObserveDuplicate(doc.Source)
		urlLogger.Debug("duplicate content skipped", zap.String("hash", doc.ContentHash))
		return outcomeDuplicate
	}

	doc.ID, err = o.ids.NewID()
	if err != nil {
		urlLogger.Error("id generation failed", zap.Error(err))
		return outcomeFailed
	}

	stored, err := o.docs.Save(ctx, doc)
	if err != nil {
		urlLogger.Error("document save failed", zap.Error(err))
		return outcomeFailed
	}
	if !stored {
		// Storage-level unique constraint caught a race the cache missed.
		metrics.ObserveDuplicate(doc.Source)
		urlLogger.Debug("duplicate suppressed by store", zap.String("hash", doc.ContentHash))
		return outcomeDuplicate
	}

	if err := o.dedup.Register(ctx, doc.Source, doc.ContentHash); err != nil {
		urlLogger.Warn("dedup register failed", zap.Error(err))
	}

	o.archiveRaw(ctx, doc, page, urlLogger)
	o.publishDocument(ctx, doc, urlLogger)

	metrics.ObserveDocument(doc.Source, doc.ExtractionMethod)
	urlLogger.Info("document stored",
		zap.String("doc_id", doc.ID),
		zap.String("method", doc.ExtractionMethod),
		zap.Bool("partial", doc.Partial),
	)
	if doc.Partial {
		return outcomePartial
	}
	return outcomeStored
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, source, url string) (pipeline.Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := o.limiter.Acquire(ctx, source); err != nil {
			return pipeline.Page{}, fmt.Errorf("rate gate: %w", err)
		}

		start := o.clock.Now()
		page, err := o.fetcher.Fetch(ctx, url)
		if err == nil {
			metrics.ObserveFetch(source, "ok", o.clock.Now().Sub(start))
			return page, nil
		}
		metrics.ObserveFetch(source, "error", o.clock.Now().Sub(start))
		lastErr = err

		if !o.retry.ShouldRetry(err, attempt+1) {
			return pipeline.Page{}, lastErr
		}
		delay := o.retry.Backoff(attempt)
		o.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return pipeline.Page{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (o *Orchestrator) archiveRaw(ctx context.Context, doc pipeline.Document, page pipeline.Page, logger *zap.Logger) {
	if o.archive == nil {
		return
	}
	path := o.buildArchivePath(doc)
	if _, err := o.archive.Put(ctx, path, o.cfg.ArchiveContentType, page.Body); err != nil {
		logger.Warn("raw archive failed", zap.String("path", path), zap.Error(err))
	}
}

func (o *Orchestrator) buildArchivePath(doc pipeline.Document) string {
	prefix := strings.Trim(o.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", doc.Source, doc.ContentHash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, doc.Source, doc.ContentHash)
}

func (o *Orchestrator) publishDocument(ctx context.Context, doc pipeline.Document, logger *zap.Logger) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"doc_id":    doc.ID,
		"source":    doc.Source,
		"url":       doc.URL,
		"title":     doc.Title,
		"hash":      doc.ContentHash,
		"partial":   doc.Partial,
		"timestamp": doc.FetchedAt.Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		logger.Warn("publish failed", zap.Error(err))
	}
}

// RunCleanup prunes dedup entries older than the retention window.
func (o *Orchestrator) RunCleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := o.clock.Now().Add(-retention)
	removed, err := o.dedup.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune dedup entries: %w", err)
	}
	o.logger.Info("dedup entries pruned",
		zap.Int64("removed", removed),
		zap.Time("cutoff", cutoff),
	)
	return removed, nil
}

func (o *Orchestrator) trackHealth(source string, discovered int, logger *zap.Logger) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if discovered > 0 {
		o.emptyCycles[source] = 0
		metrics.SetSourceHealthy(source, true)
		return
	}
	o.emptyCycles[source]++
	if o.emptyCycles[source] >= unhealthyAfterEmptyCycles {
		metrics.SetSourceHealthy(source, false)
		logger.Warn("source unhealthy",
			zap.Int("consecutive_empty_cycles", o.emptyCycles[source]),
		)
	}
}
