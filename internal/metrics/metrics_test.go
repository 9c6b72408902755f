package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.Dial()
	m.Dial()
	m.Resolved("poll", "approved")
	m.Discard("push")
	m.HandedOff(true)
	m.Exhausted()

	if got := testutil.ToFloat64(m.Dials); got != 2 {
		t.Errorf("dials = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Resolutions.WithLabelValues("poll", "approved")); got != 1 {
		t.Errorf("resolutions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Discarded.WithLabelValues("push")); got != 1 {
		t.Errorf("discarded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Handoffs.WithLabelValues("local")); got != 1 {
		t.Errorf("local handoffs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Exhaustions); got != 1 {
		t.Errorf("exhaustions = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Dial()
	m.DialFailed()
	m.Resolved("poll", "approved")
	m.Discard("push")
	m.HandedOff(false)
	m.Exhausted()
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second New() on the same registry should fail")
	}
}

func TestHandler_ServesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, _ := New(reg)
	m.Dial()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "safebridge_dials_total 1") {
		t.Errorf("metrics output missing dials counter:\n%s", rec.Body.String())
	}
}
