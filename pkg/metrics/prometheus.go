package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"Tradyxa/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	resolves  *prometheus.CounterVec
	cache     *prometheus.CounterVec
	overlays  *prometheus.CounterVec
	malformed *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates a recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder whose collectors are registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		resolves: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradyxa_snapshots_resolved_total",
				Help: "Ticker snapshots resolved, by source and view",
			},
			[]string{"source", "full"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradyxa_snapshot_cache_total",
				Help: "Snapshot cache lookups",
			},
			[]string{"result"},
		),
		overlays: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradyxa_live_overlays_total",
				Help: "Live values applied onto snapshots",
			},
			[]string{"field"},
		),
		malformed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradyxa_malformed_documents_total",
				Help: "Documents that could not be decoded",
			},
			[]string{"kind"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradyxa_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradyxa_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordResolve(source models.Source, full bool) {
	r.resolves.WithLabelValues(string(source), strconv.FormatBool(full)).Inc()
}

func (r *Recorder) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordOverlay(field string) {
	r.overlays.WithLabelValues(field).Inc()
}

func (r *Recorder) RecordMalformed(kind string) {
	r.malformed.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
