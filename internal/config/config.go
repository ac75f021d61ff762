// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Pipeline PipelineConfig          `mapstructure:"pipeline"`
	HTTP     HTTPConfig              `mapstructure:"http"`
	DB       DBConfig                `mapstructure:"db"`
	Archive  ArchiveConfig           `mapstructure:"archive"`
	PubSub   PubSubConfig            `mapstructure:"pubsub"`
	Dedup    DedupConfig             `mapstructure:"dedup"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Sources  []pipeline.SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
	Enabled bool   `mapstructure:"enabled"`
}

// PipelineConfig governs orchestration behavior.
type PipelineConfig struct {
	Concurrency      int    `mapstructure:"concurrency"`
	UserAgent        string `mapstructure:"user_agent"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryBaseMs      int    `mapstructure:"retry_base_ms"`
	RetryMaxMs       int    `mapstructure:"retry_max_ms"`
	RespectRobots    bool   `mapstructure:"respect_robots"`
	DefaultTrigger   string `mapstructure:"default_trigger"`
	MisfireGraceSecs int    `mapstructure:"misfire_grace_seconds"`
}

// HTTPConfig configures the fetch client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRedirects   int `mapstructure:"max_redirects"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores (development mode).
type DBConfig struct {
	DSN            string `mapstructure:"dsn"`
	MaxConns       int32  `mapstructure:"max_conns"`
	MinConns       int32  `mapstructure:"min_conns"`
	DocumentsTable string `mapstructure:"documents_table"`
	JobsTable      string `mapstructure:"jobs_table"`
	HashesTable    string `mapstructure:"hashes_table"`
}

// ArchiveConfig sets the raw-HTML archive backend.
type ArchiveConfig struct {
	Backend     string `mapstructure:"backend"` // gcs, local, memory, off
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for new-document notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DedupConfig bounds the seen-hash index.
type DedupConfig struct {
	RetentionDays  int    `mapstructure:"retention_days"`
	CleanupTrigger string `mapstructure:"cleanup_trigger"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applySourceDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.enabled", true)
	v.SetDefault("pipeline.concurrency", 6)
	v.SetDefault("pipeline.user_agent", "newsharvest/0.3")
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.retry_base_ms", 1000)
	v.SetDefault("pipeline.retry_max_ms", 30000)
	v.SetDefault("pipeline.respect_robots", true)
	v.SetDefault("pipeline.default_trigger", "@every 30m")
	v.SetDefault("pipeline.misfire_grace_seconds", 300)
	v.SetDefault("http.timeout_seconds", 12)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("db.documents_table", "documents")
	v.SetDefault("db.jobs_table", "jobs")
	v.SetDefault("db.hashes_table", "seen_hashes")
	v.SetDefault("archive.backend", "off")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("dedup.retention_days", 90)
	v.SetDefault("dedup.cleanup_trigger", "@every 24h")
	v.SetDefault("logging.development", false)
}

func applySourceDefaults(cfg *Config) {
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Burst <= 0 {
			src.Burst = 1
		}
		if src.MaxURLsPerSection <= 0 {
			src.MaxURLsPerSection = 20
		}
		if src.MinContentLength <= 0 {
			src.MinContentLength = 300
		}
		if src.MinParagraphLen <= 0 {
			src.MinParagraphLen = 40
		}
		if src.PaywallThreshold <= 0 {
			src.PaywallThreshold = src.MinContentLength
		}
		if src.TriggerSpec == "" {
			src.TriggerSpec = cfg.Pipeline.DefaultTrigger
		}
	}
}

var validSourceName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Dedup.RetentionDays <= 0 {
		return fmt.Errorf("dedup.retention_days must be > 0")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if !validSourceName.MatchString(src.Name) {
			return fmt.Errorf("invalid source name %q", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		if src.BaseURL == "" {
			return fmt.Errorf("source %s: base_url is required", src.Name)
		}
		if src.RatePerMinute <= 0 {
			return fmt.Errorf("source %s: rate_per_minute must be > 0", src.Name)
		}
		if len(src.Sections) == 0 {
			return fmt.Errorf("source %s: at least one section is required", src.Name)
		}
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetentionWindow converts the dedup retention config into a duration.
func (c Config) RetentionWindow() time.Duration {
	return time.Duration(c.Dedup.RetentionDays) * 24 * time.Hour
}
