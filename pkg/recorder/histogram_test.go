package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramWholeFeature(t *testing.T) {
	h, err := newHistogram(HistogramDef{Feature: "emails", Suffix: "histogram"})
	require.NoError(t, err)

	h.Add("alice@example.com")
	h.Add("bob@example.com")
	h.Add("alice@example.com")

	assert.Equal(t, []Entry{
		{Feature: "alice@example.com", Count: 2},
		{Feature: "bob@example.com", Count: 1},
	}, h.Report())
}

func TestHistogramPatternAndLowercase(t *testing.T) {
	h, err := newHistogram(HistogramDef{
		Feature:   "emails",
		Pattern:   `@(\S+)`,
		Suffix:    "domains",
		Lowercase: true,
	})
	require.NoError(t, err)

	h.Add("alice@Example.COM")
	h.Add("bob@example.com")
	h.Add("no-at-sign")

	assert.Equal(t, []Entry{{Feature: "example.com", Count: 2}}, h.Report())
}

func TestHistogramPatternWithoutCaptureUsesWholeMatch(t *testing.T) {
	h, err := newHistogram(HistogramDef{Feature: "f", Pattern: `^.....`, Suffix: "first5"})
	require.NoError(t, err)

	h.Add("abcdefgh")
	h.Add("abcdezzz")
	assert.Equal(t, []Entry{{Feature: "abcde", Count: 2}}, h.Report())
}

func TestHistogramBadPatternIsConfigError(t *testing.T) {
	_, err := newHistogram(HistogramDef{Feature: "f", Pattern: `((`, Suffix: "x"})
	require.Error(t, err)
}

func TestHistogramReportTieBreaksOnFeature(t *testing.T) {
	h, err := newHistogram(HistogramDef{Feature: "f", Suffix: "x"})
	require.NoError(t, err)
	h.Add("zebra")
	h.Add("apple")
	assert.Equal(t, []Entry{
		{Feature: "apple", Count: 1},
		{Feature: "zebra", Count: 1},
	}, h.Report())
}
