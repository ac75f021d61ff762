package source

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Quirk is a small post-extraction hook for source-specific behavior that
// declarative selectors cannot express. Quirks enrich a valid Document;
// they never reject one.
type Quirk interface {
	Name() string
	Apply(page pipeline.Page, doc *pipeline.Document, cfg pipeline.SourceConfig) error
}

func quirkByName(name string) (Quirk, error) {
	switch name {
	case "":
		return nil, nil
	case "audio":
		return &audioQuirk{}, nil
	default:
		return nil, fmt.Errorf("unknown quirk %q", name)
	}
}

// audioQuirk attaches the broadcast audio URL for radio sources, looking at
// the configured audio selectors first and og:audio metadata second.
type audioQuirk struct{}

func (q *audioQuirk) Name() string { return "audio" }

func (q *audioQuirk) Apply(page pipeline.Page, doc *pipeline.Document, cfg pipeline.SourceConfig) error {
	sel, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return fmt.Errorf("parse html for audio quirk: %w", err)
	}

	for _, selector := range cfg.Selectors.Audio {
		if selector == "" {
			continue
		}
		match := sel.Find(selector).First()
		if match.Length() == 0 {
			continue
		}
		for _, attr := range []string{"src", "href", "data-src"} {
			if v, ok := match.Attr(attr); ok && strings.TrimSpace(v) != "" {
				doc.AudioURL = strings.TrimSpace(v)
				return nil
			}
		}
	}

	if v, ok := sel.Find(`meta[property="og:audio"]`).First().Attr("content"); ok {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			doc.AudioURL = trimmed
			return nil
		}
	}

	return errors.New("no audio url found")
}
