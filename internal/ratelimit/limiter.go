// Package ratelimit implements a per-source token bucket limiter.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tidewire/newsharvest/internal/metrics"
	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Limiter manages one token bucket per source. Tokens refill continuously
// (fractional tokens accrue with wall-clock time); Acquire only ever delays,
// it fails solely on context cancellation. Buckets are in-process only and
// reset on restart.
type Limiter struct {
	mu           sync.Mutex
	buckets      map[string]*rate.Limiter
	configured   map[string]bucketSpec
	defaultRPM   float64
	defaultBurst int
}

type bucketSpec struct {
	limit rate.Limit
	burst int
}

// Config holds fallback pacing for sources without explicit rates.
type Config struct {
	DefaultPerMinute float64
	DefaultBurst     int
}

// New creates a Limiter with per-source buckets taken from the source
// configs and a fallback for anything unregistered.
func New(cfg Config, sources []pipeline.SourceConfig) *Limiter {
	l := &Limiter{
		buckets:      make(map[string]*rate.Limiter),
		configured:   make(map[string]bucketSpec, len(sources)),
		defaultRPM:   cfg.DefaultPerMinute,
		defaultBurst: cfg.DefaultBurst,
	}
	if l.defaultRPM <= 0 {
		l.defaultRPM = 6
	}
	if l.defaultBurst <= 0 {
		l.defaultBurst = 1
	}
	for _, src := range sources {
		burst := src.Burst
		if burst <= 0 {
			burst = 1
		}
		l.configured[src.Name] = bucketSpec{
			limit: perMinute(src.RatePerMinute),
			burst: burst,
		}
	}
	return l
}

// Acquire blocks until a token is available for the source, respecting the
// context. Different sources never block each other.
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	bucket := l.bucket(source)

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", source, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(source, waited)
	}
	return nil
}

func (l *Limiter) bucket(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[source]; ok {
		return b
	}
	spec, ok := l.configured[source]
	if !ok {
		spec = bucketSpec{limit: perMinute(l.defaultRPM), burst: l.defaultBurst}
	}
	b := rate.NewLimiter(spec.limit, spec.burst)
	l.buckets[source] = b
	return b
}

func perMinute(rpm float64) rate.Limit {
	if rpm <= 0 {
		return rate.Inf
	}
	return rate.Limit(rpm / 60.0)
}
