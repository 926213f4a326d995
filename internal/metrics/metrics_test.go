package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionStarted()
	m.SessionStarted()
	m.SessionClosed(ReasonTimeout)
	m.SuggestionSent()
	m.CandidateSkipped(SkipFewMedia)
	m.CandidateSkipped(SkipFewMedia)
	m.CacheLookup(true)
	m.CacheLookup(false)

	require.Equal(t, 2.0, testutil.ToFloat64(m.sessionsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sessionsClosed.WithLabelValues(ReasonTimeout)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.suggestions))
	require.Equal(t, 2.0, testutil.ToFloat64(m.skipped.WithLabelValues(SkipFewMedia)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Positive(t, count)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.SessionStarted()
		m.SessionClosed(ReasonExhausted)
		m.SuggestionSent()
		m.CandidateSkipped(SkipDeactivated)
		m.CacheLookup(true)
	})
}
