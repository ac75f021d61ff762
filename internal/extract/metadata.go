package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// metadataFallback fills fields still missing after the winning strategy
// from Open Graph and standard meta tags. It never overrides a field the
// winner produced and never supplies a body.
type metadataFallback struct{}

func (m *metadataFallback) fill(sel *goquery.Document, draft *Draft, cfg pipeline.SourceConfig) {
	if draft.Title == "" {
		draft.Title = metaContent(sel, `meta[property="og:title"]`, `meta[name="twitter:title"]`)
	}
	if draft.Subtitle == "" {
		draft.Subtitle = metaContent(sel, `meta[property="og:description"]`, `meta[name="description"]`)
	}
	if draft.Author == "" {
		draft.Author = metaContent(sel, `meta[property="article:author"]`, `meta[name="author"]`)
	}
	if draft.Category == "" {
		draft.Category = metaContent(sel, `meta[property="article:section"]`)
	}
	if len(draft.Tags) == 0 {
		draft.Tags = metaContents(sel, `meta[property="article:tag"]`)
	}
	if draft.PublishedAt == nil {
		raw := metaContent(sel,
			`meta[property="article:published_time"]`,
			`meta[property="og:article:published_time"]`,
			`meta[itemprop="datePublished"]`,
		)
		if raw != "" {
			draft.PublishedAt = ParsePublished(raw, cfg)
		}
	}
}

func metaContent(sel *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if content, ok := sel.Find(s).First().Attr("content"); ok {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func metaContents(sel *goquery.Document, selector string) []string {
	var out []string
	sel.Find(selector).Each(func(_ int, m *goquery.Selection) {
		if content, ok := m.Attr("content"); ok {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	})
	return out
}
