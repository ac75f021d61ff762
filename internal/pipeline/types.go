// Package pipeline defines core types shared across subsystems.
package pipeline

import (
	"net/http"
	"time"
)

// SelectorSet holds the ordered CSS selector candidates for each document
// field. The first selector producing a non-empty result wins.
type SelectorSet struct {
	Title    []string `mapstructure:"title" json:"title"`
	Subtitle []string `mapstructure:"subtitle" json:"subtitle"`
	Body     []string `mapstructure:"body" json:"body"`
	Author   []string `mapstructure:"author" json:"author"`
	Date     []string `mapstructure:"date" json:"date"`
	Category []string `mapstructure:"category" json:"category"`
	Tags     []string `mapstructure:"tags" json:"tags"`
	Audio    []string `mapstructure:"audio" json:"audio"`
}

// SourceConfig statically describes one scrape target. It is loaded at
// startup and never mutated afterwards.
type SourceConfig struct {
	Name              string      `mapstructure:"name" json:"name"`
	BaseURL           string      `mapstructure:"base_url" json:"base_url"`
	Sections          []string    `mapstructure:"sections" json:"sections"`
	RatePerMinute     float64     `mapstructure:"rate_per_minute" json:"rate_per_minute"`
	Burst             int         `mapstructure:"burst" json:"burst"`
	ArticlePattern    string      `mapstructure:"article_pattern" json:"article_pattern"`
	MaxURLsPerSection int         `mapstructure:"max_urls_per_section" json:"max_urls_per_section"`
	Selectors         SelectorSet `mapstructure:"selectors" json:"selectors"`
	MinContentLength  int         `mapstructure:"min_content_length" json:"min_content_length"`
	MinParagraphLen   int         `mapstructure:"min_paragraph_length" json:"min_paragraph_length"`
	ExcludedPhrases   []string    `mapstructure:"excluded_phrases" json:"excluded_phrases"`
	PaywallKeywords   []string    `mapstructure:"paywall_keywords" json:"paywall_keywords"`
	PaywallThreshold  int         `mapstructure:"paywall_threshold" json:"paywall_threshold"`
	DateFormats       []string    `mapstructure:"date_formats" json:"date_formats"`
	DateLocation      string      `mapstructure:"date_location" json:"date_location"`
	Quirk             string      `mapstructure:"quirk" json:"quirk"`
	TriggerSpec       string      `mapstructure:"trigger" json:"trigger"`
}

// CandidateURL is a discovered article URL plus the section it came from.
// It is consumed once per cycle and never persisted.
type CandidateURL struct {
	Source  string
	Section string
	URL     string
}

// Document is the canonical extracted unit. It is immutable after creation;
// a re-scrape produces a new Document, never an in-place edit.
type Document struct {
	ID               string     `json:"id"`
	Source           string     `json:"source"`
	URL              string     `json:"url"`
	Title            string     `json:"title"`
	Subtitle         string     `json:"subtitle,omitempty"`
	Body             string     `json:"body_text"`
	Author           string     `json:"author,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	Category         string     `json:"category,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	AudioURL         string     `json:"audio_url,omitempty"`
	ContentHash      string     `json:"content_hash"`
	ExtractionMethod string     `json:"extraction_method"`
	Partial          bool       `json:"partial"`
	FetchedAt        time.Time  `json:"fetched_at"`
}

// Page is the raw result of one fetch.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	FetchedAt  time.Time
}

// CycleResult aggregates counters for one orchestration cycle. It is
// serialized into the owning job's last_result column.
type CycleResult struct {
	Source            string    `json:"source"`
	URLsDiscovered    int       `json:"urls_discovered"`
	URLsAttempted     int       `json:"urls_attempted"`
	URLsSucceeded     int       `json:"urls_succeeded"`
	URLsFailed        int       `json:"urls_failed"`
	DuplicatesSkipped int       `json:"duplicates_skipped"`
	Partial           int       `json:"partial"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// JobState represents the lifecycle state of a scheduled job.
type JobState string

// Job state values persisted in the job store.
const (
	JobStateScheduled JobState = "scheduled"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateMisfired  JobState = "misfired"
)

// JobKind distinguishes the static job definitions.
type JobKind string

// Job kinds.
const (
	JobKindScrape  JobKind = "scrape"
	JobKindCleanup JobKind = "cleanup"
)

// Job is a persisted schedulable unit. The scheduler mutates it on every
// fire and completion; it survives restarts via the JobStore.
type Job struct {
	ID            string       `json:"id"`
	Source        string       `json:"source,omitempty"`
	Kind          JobKind      `json:"kind"`
	TriggerSpec   string       `json:"trigger_spec"`
	NextRunAt     time.Time    `json:"next_run_at"`
	MisfireGrace  int          `json:"misfire_grace_seconds"`
	Coalesce      bool         `json:"coalesce"`
	MaxInstances  int          `json:"max_instances"`
	State         JobState     `json:"state"`
	Paused        bool         `json:"paused"`
	LastResult    *CycleResult `json:"last_result,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// HealthReport describes the job store backing database.
type HealthReport struct {
	ConnectionValid bool   `json:"connection_valid"`
	TableExists     bool   `json:"table_exists"`
	JobCount        int    `json:"job_count"`
	Error           string `json:"error,omitempty"`
}
