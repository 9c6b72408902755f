// Package metrics holds the prometheus counters of the dispatch orchestrator.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "safebridge"

// Metrics groups the dispatch counters.
type Metrics struct {
	Dials        prometheus.Counter
	DialFailures prometheus.Counter
	Resolutions  *prometheus.CounterVec
	Discarded    *prometheus.CounterVec
	Handoffs     *prometheus.CounterVec
	Exhaustions  prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Dials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dials_total",
			Help:      "Acceptance calls started.",
		}),
		DialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dial_failures_total",
			Help:      "Acceptance calls that could not be placed after retries.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Applied resolutions by source and decision.",
		}, []string{"source", "decision"}),
		Discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_resolutions_total",
			Help:      "Resolutions discarded by first-decision-wins arbitration.",
		}, []string{"source"}),
		Handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Completed handoffs by mode (synced or local).",
		}, []string{"mode"}),
		Exhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exhaustions_total",
			Help:      "Dispatch rounds that ran out of candidates.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Dials, m.DialFailures, m.Resolutions, m.Discarded, m.Handoffs, m.Exhaustions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Dial() {
	if m != nil {
		m.Dials.Inc()
	}
}

func (m *Metrics) DialFailed() {
	if m != nil {
		m.DialFailures.Inc()
	}
}

func (m *Metrics) Resolved(source, decision string) {
	if m != nil {
		m.Resolutions.WithLabelValues(source, decision).Inc()
	}
}

func (m *Metrics) Discard(source string) {
	if m != nil {
		m.Discarded.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) HandedOff(local bool) {
	if m == nil {
		return
	}
	mode := "synced"
	if local {
		mode = "local"
	}
	m.Handoffs.WithLabelValues(mode).Inc()
}

func (m *Metrics) Exhausted() {
	if m != nil {
		m.Exhaustions.Inc()
	}
}

// Handler serves the registry in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
