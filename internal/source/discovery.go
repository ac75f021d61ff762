package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Discover fetches each configured section listing and returns candidate
// article URLs. Listing fetches go through the same rate gate as article
// fetches; a failed section is logged and skipped, not fatal.
func (a *Adapter) Discover(ctx context.Context) ([]pipeline.CandidateURL, error) {
	var candidates []pipeline.CandidateURL
	seen := make(map[string]bool)

	for _, section := range a.cfg.Sections {
		listingURL, err := a.sectionURL(section)
		if err != nil {
			a.logger.Warn("bad section path", zap.String("section", section), zap.Error(err))
			continue
		}

		if err := a.limiter.Acquire(ctx, a.cfg.Name); err != nil {
			return candidates, fmt.Errorf("rate gate: %w", err)
		}

		page, err := a.fetcher.Fetch(ctx, listingURL)
		if err != nil {
			a.logger.Warn("section fetch failed",
				zap.String("section", section),
				zap.Error(err),
			)
			continue
		}

		links, err := a.extractLinks(page.Body)
		if err != nil {
			a.logger.Warn("section parse failed", zap.String("section", section), zap.Error(err))
			continue
		}

		added := 0
		for _, link := range links {
			if added >= a.cfg.MaxURLsPerSection {
				break
			}
			if seen[link] {
				continue
			}
			seen[link] = true
			added++
			candidates = append(candidates, pipeline.CandidateURL{
				Source:  a.cfg.Name,
				Section: section,
				URL:     link,
			})
		}
	}

	return candidates, nil
}

func (a *Adapter) sectionURL(section string) (string, error) {
	ref, err := url.Parse(section)
	if err != nil {
		return "", fmt.Errorf("parse section %q: %w", section, err)
	}
	return a.base.ResolveReference(ref).String(), nil
}

// extractLinks pulls candidate article links from a listing page:
// absolutized, same-host, matching the source's article pattern.
func (a *Adapter) extractLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := a.base.ResolveReference(ref)
		if abs.Host != a.base.Host {
			return
		}
		abs.Fragment = ""
		if a.pattern != nil && !a.pattern.MatchString(abs.Path) {
			return
		}
		links = append(links, abs.String())
	})
	return links, nil
}
