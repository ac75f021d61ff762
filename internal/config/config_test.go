package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  api_key: secret
pipeline:
  concurrency: 8
  user_agent: harvest-agent
  max_retries: 2
  respect_robots: false
http:
  timeout_seconds: 20
  max_redirects: 3
db:
  dsn: postgres://localhost/news
archive:
  backend: local
  local_dir: /tmp/pages
dedup:
  retention_days: 30
logging:
  development: true
sources:
  - name: morningpost
    base_url: https://morningpost.example
    sections: ["/politics", "/economy"]
    rate_per_minute: 10
    article_pattern: '/articles/\d+'
    selectors:
      title: ["h1.headline"]
      body: ["div.article-body"]
  - name: radio-uno
    base_url: https://radiouno.example
    sections: ["/news"]
    rate_per_minute: 5
    quirk: audio
    trigger: "0 */2 * * *"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "secret" {
		t.Fatalf("expected server overrides to apply")
	}
	if cfg.Pipeline.Concurrency != 8 || cfg.Pipeline.RespectRobots {
		t.Fatalf("expected pipeline overrides to apply")
	}
	if cfg.FetchTimeout() != 20*time.Second {
		t.Fatalf("expected 20s fetch timeout, got %v", cfg.FetchTimeout())
	}
	if cfg.RetentionWindow() != 30*24*time.Hour {
		t.Fatalf("expected 30d retention, got %v", cfg.RetentionWindow())
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
}

func TestLoadAppliesSourceDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
sources:
  - name: morningpost
    base_url: https://morningpost.example
    sections: ["/front"]
    rate_per_minute: 6
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	src := cfg.Sources[0]
	if src.Burst != 1 {
		t.Errorf("expected default burst 1, got %d", src.Burst)
	}
	if src.MinContentLength != 300 {
		t.Errorf("expected default min content length 300, got %d", src.MinContentLength)
	}
	if src.MinParagraphLen != 40 {
		t.Errorf("expected default min paragraph length 40, got %d", src.MinParagraphLen)
	}
	if src.TriggerSpec != cfg.Pipeline.DefaultTrigger {
		t.Errorf("expected default trigger %q, got %q", cfg.Pipeline.DefaultTrigger, src.TriggerSpec)
	}
	if src.PaywallThreshold != src.MinContentLength {
		t.Errorf("expected paywall threshold to default to min content length")
	}
}

func TestValidateRejectsBadSources(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080},
		Pipeline: PipelineConfig{Concurrency: 4},
		HTTP:     HTTPConfig{TimeoutSeconds: 10},
		Dedup:    DedupConfig{RetentionDays: 90},
	}

	bad := base
	bad.Sources = []pipeline.SourceConfig{
		{Name: "Bad Name!", BaseURL: "https://x", Sections: []string{"/a"}, RatePerMinute: 1},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for invalid source name")
	}

	dup := base
	dup.Sources = []pipeline.SourceConfig{
		{Name: "alpha", BaseURL: "https://a", Sections: []string{"/a"}, RatePerMinute: 1},
		{Name: "alpha", BaseURL: "https://b", Sections: []string{"/b"}, RatePerMinute: 1},
	}
	if err := dup.Validate(); err == nil {
		t.Fatal("expected error for duplicate source name")
	}

	zero := base
	zero.Sources = []pipeline.SourceConfig{
		{Name: "alpha", BaseURL: "https://a", Sections: []string{"/a"}},
	}
	if err := zero.Validate(); err == nil {
		t.Fatal("expected error for zero rate")
	}
}
