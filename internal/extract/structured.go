package extract

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// structuredStrategy extracts from JSON-LD script blocks. Schema.org article
// markup supplies title, body, author and published date atomically, so it
// carries the highest trust in the chain.
type structuredStrategy struct{}

func (s *structuredStrategy) Name() string { return "structured" }

// articleTypes are the schema.org @type values treated as articles.
var articleTypes = map[string]bool{
	"NewsArticle":          true,
	"ReportageNewsArticle": true,
	"Article":              true,
	"BlogPosting":          true,
}

type jsonLDNode struct {
	Type            any               `json:"@type"`
	Graph           []json.RawMessage `json:"@graph"`
	Headline        string            `json:"headline"`
	AlternativeHead string            `json:"alternativeHeadline"`
	Description     string            `json:"description"`
	ArticleBody     string            `json:"articleBody"`
	Author          any               `json:"author"`
	DatePublished   string            `json:"datePublished"`
	ArticleSection  any               `json:"articleSection"`
	Keywords        any               `json:"keywords"`
}

func (s *structuredStrategy) Extract(sel *goquery.Document, cfg pipeline.SourceConfig) (Draft, error) {
	var found *jsonLDNode
	sel.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if node := parseArticleNode([]byte(block.Text())); node != nil {
			found = node
			return false
		}
		return true
	})
	if found == nil {
		return Draft{}, errors.New("no article json-ld block")
	}
	if found.ArticleBody == "" {
		return Draft{}, errors.New("json-ld article has no articleBody")
	}

	draft := Draft{
		Title:       strings.TrimSpace(found.Headline),
		Subtitle:    strings.TrimSpace(firstNonEmpty(found.AlternativeHead, found.Description)),
		Body:        found.ArticleBody,
		Author:      authorName(found.Author),
		Category:    firstString(found.ArticleSection),
		Tags:        keywordList(found.Keywords),
		PublishedAt: ParsePublished(found.DatePublished, cfg),
	}
	return draft, nil
}

// parseArticleNode unmarshals one script block, unwrapping top-level arrays
// and @graph containers.
func parseArticleNode(data []byte) *jsonLDNode {
	var node jsonLDNode
	if err := json.Unmarshal(data, &node); err == nil {
		if n := resolveNode(&node); n != nil {
			return n
		}
	}

	var nodes []jsonLDNode
	if err := json.Unmarshal(data, &nodes); err == nil {
		for i := range nodes {
			if n := resolveNode(&nodes[i]); n != nil {
				return n
			}
		}
	}
	return nil
}

func resolveNode(node *jsonLDNode) *jsonLDNode {
	if isArticleType(node.Type) {
		return node
	}
	for _, raw := range node.Graph {
		var inner jsonLDNode
		if err := json.Unmarshal(raw, &inner); err != nil {
			continue
		}
		if isArticleType(inner.Type) {
			return &inner
		}
	}
	return nil
}

func isArticleType(t any) bool {
	switch v := t.(type) {
	case string:
		return articleTypes[v]
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && articleTypes[s] {
				return true
			}
		}
	}
	return false
}

// authorName resolves schema.org author shapes: a plain string, a Person
// object, or an array of either.
func authorName(author any) string {
	switch v := author.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if name := authorName(item); name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

func firstString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []any:
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

func keywordList(v any) []string {
	switch kw := v.(type) {
	case string:
		if kw == "" {
			return nil
		}
		parts := strings.Split(kw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(kw))
		for _, item := range kw {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
