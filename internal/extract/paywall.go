package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// hasPaywallMarkers reports whether the page text contains any of the
// source's paywall keywords. Flagged documents are stored with partial=true
// rather than rejected, so downstream consumers can deprioritize them.
func hasPaywallMarkers(sel *goquery.Document, cfg pipeline.SourceConfig) bool {
	if len(cfg.PaywallKeywords) == 0 {
		return false
	}
	pageText := strings.ToLower(sel.Text())
	for _, keyword := range cfg.PaywallKeywords {
		if keyword != "" && strings.Contains(pageText, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
