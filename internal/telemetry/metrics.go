package telemetry

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. Hot paths bump atomics; prometheus
// reads them lazily through GaugeFunc collectors on a private registry, so
// tests can create as many instances as they like.
type Metrics struct {
	PollsTotal          atomic.Uint64
	PollErrors          atomic.Uint64
	EmptyPolls          atomic.Uint64
	DetectionsPublished atomic.Uint64

	ConfidenceRequests atomic.Uint64
	ConfidenceResults  atomic.Uint64
	ConfidenceFailures atomic.Uint64

	FramesIngested atomic.Uint64
	FramesDropped  atomic.Uint64

	ActiveSessions atomic.Int64
	SessionsTotal  atomic.Uint64

	ReadingsStored atomic.Uint64

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name string
		help string
		load func() float64
	}{
		{"gauge_polls_total", "Total detection polls executed", func() float64 { return float64(m.PollsTotal.Load()) }},
		{"gauge_poll_errors_total", "Total detection polls that failed", func() float64 { return float64(m.PollErrors.Load()) }},
		{"gauge_empty_polls_total", "Total polls that produced no detections", func() float64 { return float64(m.EmptyPolls.Load()) }},
		{"gauge_detections_published_total", "Total detected objects published to sessions", func() float64 { return float64(m.DetectionsPublished.Load()) }},
		{"gauge_confidence_requests_total", "Total confidence assessments triggered", func() float64 { return float64(m.ConfidenceRequests.Load()) }},
		{"gauge_confidence_results_total", "Total confidence results applied to sessions", func() float64 { return float64(m.ConfidenceResults.Load()) }},
		{"gauge_confidence_failures_total", "Total confidence assessments that degraded to nil", func() float64 { return float64(m.ConfidenceFailures.Load()) }},
		{"gauge_frames_ingested_total", "Total camera frames accepted by the ingest endpoint", func() float64 { return float64(m.FramesIngested.Load()) }},
		{"gauge_frames_dropped_total", "Total camera frames rejected by the ingest endpoint", func() float64 { return float64(m.FramesDropped.Load()) }},
		{"gauge_active_sessions", "Watch sessions currently open", func() float64 { return float64(m.ActiveSessions.Load()) }},
		{"gauge_sessions_total", "Watch sessions created since start", func() float64 { return float64(m.SessionsTotal.Load()) }},
		{"gauge_readings_stored_total", "Total readings persisted", func() float64 { return float64(m.ReadingsStored.Load()) }},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.load,
		))
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
