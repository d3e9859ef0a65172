package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the node. A nil *Metrics is valid
// and disables recording, so unit tests can pass nil without touching the
// default registry.
type Metrics struct {
	VerifyResults       *prometheus.CounterVec
	RegistryLookups     *prometheus.CounterVec
	CorrelationOutcomes *prometheus.CounterVec
	FanoutTargets       prometheus.Histogram
	DispatchFailures    prometheus.Counter
	RepliesForwarded    prometheus.Counter
}

// New creates and registers all Prometheus metrics. Call once per process.
func New() *Metrics {
	return &Metrics{
		VerifyResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "becknet_signature_verifications_total",
			Help: "Inbound signature verification results by outcome",
		}, []string{"result"}),
		RegistryLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "becknet_registry_lookups_total",
			Help: "Registry lookups by source (cache hit, miss, stale fallback)",
		}, []string{"source"}),
		CorrelationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "becknet_correlation_outcomes_total",
			Help: "Terminal correlation states (resolved, expired)",
		}, []string{"state"}),
		FanoutTargets: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "becknet_fanout_targets",
			Help:    "Eligible participant count per discovery fan-out",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		DispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "becknet_dispatch_failures_total",
			Help: "Outbound dispatch attempts that failed or were rejected",
		}),
		RepliesForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "becknet_replies_forwarded_total",
			Help: "Fan-out replies forwarded upstream to the requester",
		}),
	}
}

// ObserveVerify records a signature verification outcome.
func (m *Metrics) ObserveVerify(result string) {
	if m == nil {
		return
	}
	m.VerifyResults.WithLabelValues(result).Inc()
}

// ObserveLookup records where a registry lookup was served from.
func (m *Metrics) ObserveLookup(source string) {
	if m == nil {
		return
	}
	m.RegistryLookups.WithLabelValues(source).Inc()
}

// ObserveCorrelation records a terminal correlation state.
func (m *Metrics) ObserveCorrelation(state string) {
	if m == nil {
		return
	}
	m.CorrelationOutcomes.WithLabelValues(state).Inc()
}

// ObserveFanout records the eligible set size of one fan-out.
func (m *Metrics) ObserveFanout(targets int) {
	if m == nil {
		return
	}
	m.FanoutTargets.Observe(float64(targets))
}

// IncDispatchFailure counts one failed outbound dispatch.
func (m *Metrics) IncDispatchFailure() {
	if m == nil {
		return
	}
	m.DispatchFailures.Inc()
}

// IncReplyForwarded counts one reply forwarded to the requester.
func (m *Metrics) IncReplyForwarded() {
	if m == nil {
		return
	}
	m.RepliesForwarded.Inc()
}
