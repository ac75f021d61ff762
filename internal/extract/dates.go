package extract

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// isoLayouts are the machine-readable layouts tried before any source
// format table.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParsePublished parses a published date in fallback order: ISO layouts,
// the source's explicit format table, then fuzzy parsing. It returns nil on
// failure; a missing date is a correct result and must never be replaced
// with the current time.
func ParsePublished(raw string, cfg pipeline.SourceConfig) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	loc := time.UTC
	if cfg.DateLocation != "" {
		if parsed, err := time.LoadLocation(cfg.DateLocation); err == nil {
			loc = parsed
		}
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return utcPtr(t)
		}
	}

	for _, layout := range cfg.DateFormats {
		if layout == "" {
			continue
		}
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return utcPtr(t)
		}
	}

	if t, err := dateparse.ParseIn(raw, loc); err == nil {
		return utcPtr(t)
	}
	return nil
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
