package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

func TestParsePublishedISO(t *testing.T) {
	t.Parallel()

	got := ParsePublished("2026-03-13T08:15:00Z", pipeline.SourceConfig{})
	require.NotNil(t, got)
	require.Equal(t, time.Date(2026, 3, 13, 8, 15, 0, 0, time.UTC), *got)
}

func TestParsePublishedFormatTable(t *testing.T) {
	t.Parallel()

	cfg := pipeline.SourceConfig{
		DateFormats: []string{"02/01/2006 15:04", "2 January 2006"},
	}

	got := ParsePublished("13/03/2026 08:15", cfg)
	require.NotNil(t, got)
	require.Equal(t, time.March, got.Month())
	require.Equal(t, 13, got.Day())

	got = ParsePublished("13 March 2026", cfg)
	require.NotNil(t, got)
	require.Equal(t, 13, got.Day())
}

func TestParsePublishedLocation(t *testing.T) {
	t.Parallel()

	cfg := pipeline.SourceConfig{
		DateFormats:  []string{"2006-01-02 15:04"},
		DateLocation: "America/New_York",
	}

	got := ParsePublished("2026-03-13 08:00", cfg)
	require.NotNil(t, got)
	// 08:00 Eastern is 12:00 or 13:00 UTC depending on DST; either way not 08:00.
	require.NotEqual(t, 8, got.Hour())
}

func TestParsePublishedNullOnFailure(t *testing.T) {
	t.Parallel()

	cfg := pipeline.SourceConfig{DateFormats: []string{"02/01/2006"}}
	require.Nil(t, ParsePublished("", cfg))
	require.Nil(t, ParsePublished("   ", cfg))
	require.Nil(t, ParsePublished("not a date at all ???", cfg))
}
