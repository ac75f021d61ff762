// Package fetch implements the HTTP retrieval primitive using gocolly.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxRedirects  int
	RespectRobots bool
	Clock         pipeline.Clock
}

// Fetcher implements pipeline.Fetcher using a Colly collector. It is a pure
// I/O primitive: retry policy belongs to the caller.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	robots        *RobotsPolicy
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	// Robots admission is handled by RobotsPolicy before the request is made.
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	f := &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsPolicy(cfg.UserAgent, cfg.Timeout)
	}
	return f
}

// Fetch executes a single HTTP GET and classifies any failure into a
// pipeline.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (pipeline.Page, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, url) {
		return pipeline.Page{}, &pipeline.FetchError{
			Kind:       pipeline.FetchErrHTTP,
			URL:        url,
			StatusCode: http.StatusForbidden,
			Err:        errors.New("disallowed by robots.txt"),
		}
	}

	var (
		result   pipeline.Page
		fetchErr error
		status   int
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(contextTransport{ctx: ctx, base: f.transport})
	collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= f.cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", f.cfg.MaxRedirects)
		}
		return nil
	})

	collector.OnRequest(func(r *colly.Request) {
		applyBrowserHeaders(r)
	})

	collector.OnResponse(func(r *colly.Response) {
		result = pipeline.Page{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
			FetchedAt:  f.now(),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := f.visit(ctx, collector, url); err != nil {
		return pipeline.Page{}, f.classify(url, status, err)
	}
	if fetchErr != nil {
		return pipeline.Page{}, f.classify(url, status, fetchErr)
	}
	return result, nil
}

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

// classify maps transport-level failures into the error taxonomy: timeouts,
// connection failures and HTTP status errors.
func (f *Fetcher) classify(url string, status int, err error) error {
	if status >= 400 {
		return &pipeline.FetchError{
			Kind:       pipeline.FetchErrHTTP,
			URL:        url,
			StatusCode: status,
			Err:        err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &pipeline.FetchError{Kind: pipeline.FetchErrTimeout, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &pipeline.FetchError{Kind: pipeline.FetchErrTimeout, URL: url, Err: err}
	}
	return &pipeline.FetchError{Kind: pipeline.FetchErrConnection, URL: url, Err: err}
}

func (f *Fetcher) now() time.Time {
	if f.cfg.Clock != nil {
		return f.cfg.Clock.Now()
	}
	return time.Now().UTC()
}

// applyBrowserHeaders sets the polite browser-like header set expected by
// most publishers.
func applyBrowserHeaders(r *colly.Request) {
	r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Headers.Set("Accept-Language", "en-US,en;q=0.8")
	r.Headers.Set("Cache-Control", "no-cache")
	r.Headers.Set("Upgrade-Insecure-Requests", "1")
}

// contextTransport binds every outgoing request to the fetch context, so
// cancellation aborts the connection instead of only abandoning the wait.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
