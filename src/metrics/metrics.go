package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// Metrics holds the engine's Prometheus collectors. Every method is safe on a
// nil receiver so components can run without instrumentation.
// -----------------------------------------------------------------------------

type Metrics struct {
	registry *prometheus.Registry

	CacheHits          *prometheus.CounterVec
	CacheMisses        prometheus.Counter
	CacheEvictions     prometheus.Counter
	DataWindowRequests prometheus.Counter
	Diagnostics        *prometheus.CounterVec
	EventsDropped      prometheus.Counter
	FrameDuration      prometheus.Histogram
	SeriesPoints       *prometheus.GaugeVec
	LoaderFetches      *prometheus.CounterVec
}

// -----------------------------------------------------------------------------

// New registers the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lod_cache_hits_total",
			Help: "Render cache hits by tier",
		}, []string{"tier"}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "lod_cache_misses_total",
			Help: "Render cache misses that ran a decimator",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "lod_cache_evictions_total",
			Help: "Entries evicted from the global render cache",
		}),
		DataWindowRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "lod_data_window_requests_total",
			Help: "Data-window requests emitted to the loader",
		}),
		Diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lod_diagnostics_total",
			Help: "Diagnostics emitted by code",
		}, []string{"code"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "lod_events_dropped_total",
			Help: "Events dropped because a consumer channel was full",
		}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lod_frame_duration_seconds",
			Help:    "Time spent rendering one pane",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.004, 0.008, 0.016, 0.033, 0.1},
		}),
		SeriesPoints: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lod_series_points",
			Help: "Raw points held per series",
		}, []string{"series"}),
		LoaderFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lod_loader_fetches_total",
			Help: "Loader fetches by outcome",
		}, []string{"outcome"}),
	}
}

// -----------------------------------------------------------------------------

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// -----------------------------------------------------------------------------

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// -----------------------------------------------------------------------------

func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) CacheEvicted() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}

func (m *Metrics) DataWindowRequested() {
	if m == nil {
		return
	}
	m.DataWindowRequests.Inc()
}

func (m *Metrics) Diagnostic(code string) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(code).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) ObserveFrame(d time.Duration) {
	if m == nil {
		return
	}
	m.FrameDuration.Observe(d.Seconds())
}

func (m *Metrics) SetSeriesPoints(seriesID string, n int) {
	if m == nil {
		return
	}
	m.SeriesPoints.WithLabelValues(seriesID).Set(float64(n))
}

func (m *Metrics) LoaderFetch(outcome string) {
	if m == nil {
		return
	}
	m.LoaderFetches.WithLabelValues(outcome).Inc()
}
