package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrJobPaused is returned when an operation targets a paused job that must
// be resumed first.
var ErrJobPaused = errors.New("job is paused")

// FetchErrorKind classifies fetch failures for retry decisions.
type FetchErrorKind string

// Fetch error kinds.
const (
	FetchErrTimeout    FetchErrorKind = "timeout"
	FetchErrConnection FetchErrorKind = "connection"
	FetchErrHTTP       FetchErrorKind = "http"
)

// FetchError wraps a failed fetch with its classification.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchErrHTTP {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying. Timeouts,
// connection errors and 5xx responses are transient; 4xx are permanent.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case FetchErrTimeout, FetchErrConnection:
		return true
	case FetchErrHTTP:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// IsTransientFetch reports whether err is a retryable fetch failure.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient()
	}
	return false
}

// StrategyFailure records why one extraction strategy gave up.
type StrategyFailure struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// ExtractionError is returned when no strategy produced minimum viable
// content for a page.
type ExtractionError struct {
	URL      string
	Attempts []StrategyFailure
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Strategy, a.Reason))
	}
	return fmt.Sprintf("extract %s: no strategy succeeded (%s)", e.URL, strings.Join(parts, "; "))
}
