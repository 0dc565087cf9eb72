package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	searchLatency prometheus.Histogram
	knowledgeDocs prometheus.Gauge
	runsTotal     *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptgen_stage_duration_seconds",
				Help:    "Duration of research pipeline stages",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptgen_stage_failures_total",
				Help: "Collaborator failures absorbed by research stages",
			},
			[]string{"stage"},
		),
		searchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scriptgen_search_fanout_seconds",
				Help:    "Wall-clock latency of concurrent search fan-outs",
				Buckets: prometheus.DefBuckets,
			},
		),
		knowledgeDocs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptgen_knowledge_documents",
				Help: "Number of documents in the knowledge store",
			},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptgen_runs_total",
				Help: "Total number of research runs",
			},
			[]string{"status"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptgen_search_cache_hits_total",
				Help: "Total number of search cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptgen_search_cache_misses_total",
				Help: "Total number of search cache misses",
			},
		),
	}

	m.registry.MustRegister(m.stageDuration)
	m.registry.MustRegister(m.stageFailures)
	m.registry.MustRegister(m.searchLatency)
	m.registry.MustRegister(m.knowledgeDocs)
	m.registry.MustRegister(m.runsTotal)
	m.registry.MustRegister(m.cacheHits)
	m.registry.MustRegister(m.cacheMisses)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.searchLatency.Observe(d.Seconds())
}

func (m *Metrics) SetKnowledgeDocuments(n int) {
	if m == nil {
		return
	}
	m.knowledgeDocs.Set(float64(n))
}

func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}
