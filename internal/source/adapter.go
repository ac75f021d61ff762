// Package source pairs one configured source with its discovery, extraction
// and pacing policy. A single Adapter driven by declarative SourceConfig
// replaces per-source scraper implementations.
package source

import (
	"fmt"
	"net/url"
	"regexp"

	"go.uber.org/zap"

	"github.com/tidewire/newsharvest/internal/extract"
	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Adapter composes the fetcher, extractor chain and rate limiter for one
// source.
type Adapter struct {
	cfg     pipeline.SourceConfig
	base    *url.URL
	pattern *regexp.Regexp
	fetcher pipeline.Fetcher
	limiter pipeline.RateLimiter
	chain   *extract.Chain
	quirk   Quirk
	logger  *zap.Logger
}

// New builds an Adapter. The article pattern and quirk binding are resolved
// once at construction.
func New(
	cfg pipeline.SourceConfig,
	fetcher pipeline.Fetcher,
	limiter pipeline.RateLimiter,
	chain *extract.Chain,
	logger *zap.Logger,
) (*Adapter, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: parse base url: %w", cfg.Name, err)
	}
	var pattern *regexp.Regexp
	if cfg.ArticlePattern != "" {
		pattern, err = regexp.Compile(cfg.ArticlePattern)
		if err != nil {
			return nil, fmt.Errorf("source %s: compile article pattern: %w", cfg.Name, err)
		}
	}
	quirk, err := quirkByName(cfg.Quirk)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		cfg:     cfg,
		base:    base,
		pattern: pattern,
		fetcher: fetcher,
		limiter: limiter,
		chain:   chain,
		quirk:   quirk,
		logger:  logger.With(zap.String("source", cfg.Name)),
	}, nil
}

// Name returns the source name.
func (a *Adapter) Name() string { return a.cfg.Name }

// Config returns the immutable source configuration.
func (a *Adapter) Config() pipeline.SourceConfig { return a.cfg }

// Extract runs the extractor chain on a fetched article page, then applies
// the source quirk.
func (a *Adapter) Extract(page pipeline.Page) (pipeline.Document, error) {
	doc, err := a.chain.Extract(page, a.cfg)
	if err != nil {
		return pipeline.Document{}, err
	}
	if a.quirk != nil {
		if err := a.quirk.Apply(page, &doc, a.cfg); err != nil {
			// Quirks enrich, they never veto a valid document.
			a.logger.Warn("quirk failed", zap.String("quirk", a.quirk.Name()), zap.Error(err))
		}
	}
	return doc, nil
}
