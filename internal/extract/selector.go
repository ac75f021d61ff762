package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// selectorStrategy extracts via the source's ordered CSS selector lists.
// Each field takes the first selector producing a non-empty result; the body
// is assembled from paragraph children of the matched container, filtered by
// minimum length and the excluded-phrase list.
type selectorStrategy struct{}

func (s *selectorStrategy) Name() string { return "selector" }

func (s *selectorStrategy) Extract(sel *goquery.Document, cfg pipeline.SourceConfig) (Draft, error) {
	selectors := cfg.Selectors
	if len(selectors.Title) == 0 && len(selectors.Body) == 0 {
		return Draft{}, errors.New("source has no selectors configured")
	}

	title := firstText(sel, selectors.Title)
	if title == "" {
		return Draft{}, errors.New("no title selector matched")
	}

	container := firstMatch(sel, selectors.Body)
	if container == nil {
		return Draft{}, errors.New("no body selector matched")
	}
	body := buildBody(container, cfg)
	if body == "" {
		return Draft{}, errors.New("body container has no usable paragraphs")
	}

	draft := Draft{
		Title:    title,
		Subtitle: firstText(sel, selectors.Subtitle),
		Body:     body,
		Author:   firstText(sel, selectors.Author),
		Category: firstText(sel, selectors.Category),
		Tags:     allTexts(sel, selectors.Tags),
	}
	if raw := firstDate(sel, selectors.Date); raw != "" {
		draft.PublishedAt = ParsePublished(raw, cfg)
	}
	return draft, nil
}

// buildBody joins paragraph-level children of the container, dropping short
// fragments and navigation/share boilerplate.
func buildBody(container *goquery.Selection, cfg pipeline.SourceConfig) string {
	var paragraphs []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len([]rune(text)) < cfg.MinParagraphLen {
			return
		}
		if containsExcludedPhrase(text, cfg.ExcludedPhrases) {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	return strings.Join(paragraphs, "\n\n")
}

func containsExcludedPhrase(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// firstMatch returns the selection for the first selector with any match.
func firstMatch(sel *goquery.Document, selectors []string) *goquery.Selection {
	for _, s := range selectors {
		if s == "" {
			continue
		}
		match := sel.Find(s)
		if match.Length() > 0 {
			return match.First()
		}
	}
	return nil
}

// firstText returns the trimmed text of the first selector with a non-empty
// match.
func firstText(sel *goquery.Document, selectors []string) string {
	for _, s := range selectors {
		if s == "" {
			continue
		}
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstDate prefers machine-readable datetime attributes over element text.
func firstDate(sel *goquery.Document, selectors []string) string {
	for _, s := range selectors {
		if s == "" {
			continue
		}
		match := sel.Find(s).First()
		if match.Length() == 0 {
			continue
		}
		if dt, ok := match.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return strings.TrimSpace(dt)
		}
		if dt, ok := match.Attr("content"); ok && strings.TrimSpace(dt) != "" {
			return strings.TrimSpace(dt)
		}
		if text := strings.TrimSpace(match.Text()); text != "" {
			return text
		}
	}
	return ""
}

func allTexts(sel *goquery.Document, selectors []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range selectors {
		if s == "" {
			continue
		}
		sel.Find(s).Each(func(_ int, m *goquery.Selection) {
			text := strings.TrimSpace(m.Text())
			if text != "" && !seen[text] {
				seen[text] = true
				out = append(out, text)
			}
		})
		if len(out) > 0 {
			break
		}
	}
	return out
}
