package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsCacheTTL = 6 * time.Hour

// RobotsPolicy caches robots.txt verdicts per host. Unreachable or invalid
// robots files fail open: politeness is enforced best-effort, the rate
// limiter remains the hard constraint.
type RobotsPolicy struct {
	mu        sync.Mutex
	groups    map[string]*robotsEntry
	client    *http.Client
	userAgent string
}

type robotsEntry struct {
	group     *robotstxt.Group
	fetchedAt time.Time
}

// NewRobotsPolicy builds a policy with its own short-timeout client.
func NewRobotsPolicy(userAgent string, timeout time.Duration) *RobotsPolicy {
	if timeout <= 0 || timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	return &RobotsPolicy{
		groups:    make(map[string]*robotsEntry),
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Allowed reports whether the URL may be fetched for the configured agent.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	group := p.groupFor(ctx, u)
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (p *RobotsPolicy) groupFor(ctx context.Context, u *url.URL) *robotstxt.Group {
	p.mu.Lock()
	entry, ok := p.groups[u.Host]
	p.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < robotsCacheTTL {
		return entry.group
	}

	group := p.fetchGroup(ctx, u)
	p.mu.Lock()
	p.groups[u.Host] = &robotsEntry{group: group, fetchedAt: time.Now()}
	p.mu.Unlock()
	return group
}

func (p *RobotsPolicy) fetchGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	agent := p.userAgent
	if agent == "" {
		agent = "*"
	}
	return data.FindGroup(agent)
}
