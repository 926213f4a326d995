// Package metrics exposes Prometheus counters of the dialogue engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "love_machine"

// Session close reasons.
const (
	ReasonTimeout     = "timeout"
	ReasonExhausted   = "exhausted"
	ReasonCriteria    = "criteria"
	ReasonShutdown    = "shutdown"
	ReasonUndelivered = "undelivered"
)

// Candidate skip reasons.
const (
	SkipAccessDenied = "access_denied"
	SkipFewMedia     = "few_media"
	SkipMalformed    = "malformed"
	SkipDeactivated  = "deactivated"
	SkipDuplicate    = "duplicate"
	SkipLookup       = "lookup_failed"
	SkipStore        = "store_failed"
)

type Metrics struct {
	sessionsStarted prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	suggestions     prometheus.Counter
	skipped         *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions created by a search request.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Closed sessions by reason.",
		}, []string{"reason"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently registered.",
		}),
		suggestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_sent_total",
			Help:      "Candidate cards delivered to users.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_skipped_total",
			Help:      "Candidates dropped by the pipeline or the cursor.",
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Store lookups by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.sessionsStarted,
			m.sessionsClosed,
			m.activeSessions,
			m.suggestions,
			m.skipped,
			m.cacheLookups,
		)
	}

	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
	m.activeSessions.Dec()
}

func (m *Metrics) SuggestionSent() {
	if m == nil {
		return
	}
	m.suggestions.Inc()
}

func (m *Metrics) CandidateSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

// CacheLookup records whether the store alone satisfied a session.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
