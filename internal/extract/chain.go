// Package extract turns fetched HTML into Documents through an ordered
// chain of strategies: structured data, CSS selectors, metadata fallback.
package extract

import (
	"bytes"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// hardMinBodyLength rejects a body outright regardless of paywall flagging.
const hardMinBodyLength = 150

// Strategy is one extraction approach evaluated against a parsed page.
type Strategy interface {
	Name() string
	Extract(sel *goquery.Document, cfg pipeline.SourceConfig) (Draft, error)
}

// Draft is a strategy's raw field output before validation and assembly.
type Draft struct {
	Title       string
	Subtitle    string
	Body        string
	Author      string
	Category    string
	Tags        []string
	PublishedAt *time.Time
}

// Chain applies strategies in priority order. The first strategy producing a
// non-empty title and an acceptable body wins; the metadata fallback then
// fills any fields still missing.
type Chain struct {
	strategies []Strategy
	fallback   *metadataFallback
	clock      pipeline.Clock
}

// NewChain builds the default chain: structured data first, selectors second.
func NewChain(clock pipeline.Clock) *Chain {
	return &Chain{
		strategies: []Strategy{
			&structuredStrategy{},
			&selectorStrategy{},
		},
		fallback: &metadataFallback{},
		clock:    clock,
	}
}

// Extract runs the chain against one fetched page.
func (c *Chain) Extract(page pipeline.Page, cfg pipeline.SourceConfig) (pipeline.Document, error) {
	sel, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("parse html: %w", err)
	}

	var attempts []pipeline.StrategyFailure
	for _, strategy := range c.strategies {
		draft, err := strategy.Extract(sel, cfg)
		if err != nil {
			attempts = append(attempts, pipeline.StrategyFailure{
				Strategy: strategy.Name(),
				Reason:   err.Error(),
			})
			continue
		}

		draft.Body = NormalizeBody(draft.Body)
		accepted, partial, reason := c.acceptable(draft, sel, cfg)
		if !accepted {
			attempts = append(attempts, pipeline.StrategyFailure{
				Strategy: strategy.Name(),
				Reason:   reason,
			})
			continue
		}

		c.fallback.fill(sel, &draft, cfg)
		return c.assemble(page, cfg, draft, strategy.Name(), partial), nil
	}

	return pipeline.Document{}, &pipeline.ExtractionError{URL: page.URL, Attempts: attempts}
}

// acceptable applies the length thresholds and the paywall heuristic: a body
// below the source threshold but above the hard minimum is flagged partial
// when paywall keywords are present, and rejected otherwise.
func (c *Chain) acceptable(draft Draft, sel *goquery.Document, cfg pipeline.SourceConfig) (ok, partial bool, reason string) {
	if draft.Title == "" {
		return false, false, "empty title"
	}
	bodyLen := len([]rune(draft.Body))
	if bodyLen < hardMinBodyLength {
		return false, false, fmt.Sprintf("body too short (%d chars, hard minimum %d)", bodyLen, hardMinBodyLength)
	}
	if bodyLen >= cfg.MinContentLength {
		flagged := bodyLen < cfg.PaywallThreshold && hasPaywallMarkers(sel, cfg)
		return true, flagged, ""
	}
	if hasPaywallMarkers(sel, cfg) {
		return true, true, ""
	}
	return false, false, fmt.Sprintf("body below source minimum (%d < %d) with no paywall markers", bodyLen, cfg.MinContentLength)
}

func (c *Chain) assemble(page pipeline.Page, cfg pipeline.SourceConfig, draft Draft, method string, partial bool) pipeline.Document {
	fetchedAt := page.FetchedAt
	if fetchedAt.IsZero() && c.clock != nil {
		fetchedAt = c.clock.Now()
	}
	return pipeline.Document{
		Source:           cfg.Name,
		URL:              page.URL,
		Title:            draft.Title,
		Subtitle:         draft.Subtitle,
		Body:             draft.Body,
		Author:           draft.Author,
		PublishedAt:      draft.PublishedAt,
		Category:         draft.Category,
		Tags:             draft.Tags,
		ContentHash:      HashContent(draft.Body),
		ExtractionMethod: method,
		Partial:          partial,
		FetchedAt:        fetchedAt,
	}
}
