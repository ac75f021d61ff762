package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

var testSource = pipeline.SourceConfig{
	Name:             "morningpost",
	MinContentLength: 200,
	MinParagraphLen:  30,
	PaywallThreshold: 200,
	PaywallKeywords:  []string{"subscribe to continue"},
	ExcludedPhrases:  []string{"share this article"},
	Selectors: pipeline.SelectorSet{
		Title:  []string{"h1.headline"},
		Body:   []string{"div.article-body"},
		Author: []string{"span.byline"},
		Date:   []string{"time.published"},
	},
}

const longParagraph = "The committee approved the measure after a lengthy debate that stretched well past midnight, with members citing budget constraints."

func page(html string) pipeline.Page {
	return pipeline.Page{
		URL:       "https://morningpost.example/articles/1",
		Body:      []byte(html),
		FetchedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestChainPrefersStructuredData(t *testing.T) {
	t.Parallel()

	// Valid JSON-LD, deliberately broken selectors (no matching elements).
	html := `<html><head>
<script type="application/ld+json">
{"@type":"NewsArticle","headline":"Council Passes Budget","articleBody":"` +
		strings.Repeat("The council voted on the annual budget after much deliberation. ", 10) +
		`","author":{"@type":"Person","name":"Ana Ruiz"},"datePublished":"2026-03-13T08:00:00Z"}
</script></head><body><div id="unrelated"></div></body></html>`

	chain := NewChain(nil)
	doc, err := chain.Extract(page(html), testSource)
	require.NoError(t, err)
	require.Equal(t, "structured", doc.ExtractionMethod)
	require.Equal(t, "Council Passes Budget", doc.Title)
	require.Equal(t, "Ana Ruiz", doc.Author)
	require.NotNil(t, doc.PublishedAt)
	require.Equal(t, 2026, doc.PublishedAt.Year())
	require.NotEmpty(t, doc.ContentHash)
}

func TestChainFallsBackToSelectors(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h1 class="headline">Port Strike Ends</h1>
<span class="byline">Luis Prado</span>
<time class="published" datetime="2026-03-12T10:00:00Z">yesterday</time>
<div class="article-body">
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
<p>short</p>
<p>Share this article with your friends on social media platforms today!</p>
</div></body></html>`

	chain := NewChain(nil)
	doc, err := chain.Extract(page(html), testSource)
	require.NoError(t, err)
	require.Equal(t, "selector", doc.ExtractionMethod)
	require.Equal(t, "Port Strike Ends", doc.Title)
	require.Equal(t, "Luis Prado", doc.Author)
	require.NotContains(t, doc.Body, "short")
	require.NotContains(t, doc.Body, "Share this article")
	require.NotNil(t, doc.PublishedAt)
}

func TestChainReturnsExtractionErrorWhenNothingMatches(t *testing.T) {
	t.Parallel()

	html := `<html><body><div id="nav">menu</div></body></html>`

	chain := NewChain(nil)
	_, err := chain.Extract(page(html), testSource)
	require.Error(t, err)

	var ee *pipeline.ExtractionError
	require.True(t, errors.As(err, &ee))
	require.Len(t, ee.Attempts, 2)
	require.Equal(t, "structured", ee.Attempts[0].Strategy)
	require.Equal(t, "selector", ee.Attempts[1].Strategy)
}

func TestChainMetadataFillsMissingFields(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<meta property="og:description" content="A short standfirst.">
<meta property="article:published_time" content="2026-03-10T06:00:00Z">
<meta name="author" content="Meta Author">
<meta property="article:section" content="Economy">
<meta property="article:tag" content="ports">
<meta property="article:tag" content="labor">
</head><body>
<h1 class="headline">Docks Reopen</h1>
<div class="article-body"><p>` + longParagraph + `</p><p>` + longParagraph + `</p></div>
</body></html>`

	chain := NewChain(nil)
	doc, err := chain.Extract(page(html), testSource)
	require.NoError(t, err)
	require.Equal(t, "selector", doc.ExtractionMethod)
	require.Equal(t, "A short standfirst.", doc.Subtitle)
	require.Equal(t, "Meta Author", doc.Author)
	require.Equal(t, "Economy", doc.Category)
	require.Equal(t, []string{"ports", "labor"}, doc.Tags)
	require.NotNil(t, doc.PublishedAt)
}

func TestChainNeverFabricatesDates(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h1 class="headline">Undated Story</h1>
<time class="published">not a date at all ???</time>
<div class="article-body"><p>` + longParagraph + `</p><p>` + longParagraph + `</p></div>
</body></html>`

	chain := NewChain(nil)
	doc, err := chain.Extract(page(html), testSource)
	require.NoError(t, err)
	require.Nil(t, doc.PublishedAt, "unparseable date must stay null, never now()")
}

func TestChainFlagsPaywalledShortBody(t *testing.T) {
	t.Parallel()

	// One paragraph above the hard minimum but below the source minimum,
	// plus a paywall marker.
	para := strings.Repeat("Preview text for subscribers only. ", 5)
	html := `<html><body>
<h1 class="headline">Premium Story</h1>
<div class="article-body"><p>` + para + `</p></div>
<div class="gate">Subscribe to continue reading this story.</div>
</body></html>`

	chain := NewChain(nil)
	doc, err := chain.Extract(page(html), testSource)
	require.NoError(t, err)
	require.True(t, doc.Partial)
}

func TestChainRejectsBelowHardMinimum(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h1 class="headline">Stub</h1>
<div class="article-body"><p>Too short to be a real article body at all.</p></div>
<div class="gate">Subscribe to continue reading.</div>
</body></html>`

	chain := NewChain(nil)
	_, err := chain.Extract(page(html), testSource)
	require.Error(t, err)

	var ee *pipeline.ExtractionError
	require.True(t, errors.As(err, &ee))
}

func TestChainHashIsStableAcrossWhitespace(t *testing.T) {
	t.Parallel()

	body := `<p>` + longParagraph + `</p><p>` + longParagraph + `</p>`
	htmlA := `<html><body><h1 class="headline">Same Story</h1><div class="article-body">` + body + `</div></body></html>`
	htmlB := strings.ReplaceAll(htmlA, " ", "  ")

	chain := NewChain(nil)
	docA, err := chain.Extract(page(htmlA), testSource)
	require.NoError(t, err)
	docB, err := chain.Extract(page(htmlB), testSource)
	require.NoError(t, err)
	require.Equal(t, docA.ContentHash, docB.ContentHash)
}
