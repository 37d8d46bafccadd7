// Package metrics instruments the engine with Prometheus metrics
// (SPEC_FULL.md §4.9), enriched from the pack's
// github.com/prometheus/client_golang dependency. A Recorder is injected
// into the Environment; the default NoopRecorder keeps the core usable
// without a metrics backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder observes the engine's ingest/flush/query operations.
type Recorder interface {
	DocumentIndexed()
	FlushDuration(d time.Duration)
	FlushFailure()
	QueryDuration(d time.Duration, phrase bool, scoring string)
	BufferTokens(n int)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) DocumentIndexed()                          {}
func (NoopRecorder) FlushDuration(time.Duration)               {}
func (NoopRecorder) FlushFailure()                             {}
func (NoopRecorder) QueryDuration(time.Duration, bool, string) {}
func (NoopRecorder) BufferTokens(int)                          {}

// Prometheus is a Recorder backed by a prometheus.Registry.
type Prometheus struct {
	registry *prometheus.Registry

	documentsIndexed *prometheus.CounterVec
	flushDuration    prometheus.Histogram
	flushFailures    prometheus.Counter
	queryDuration    *prometheus.HistogramVec
	bufferTokens     prometheus.Gauge
}

// NewPrometheus registers and returns a Prometheus-backed Recorder.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		documentsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wiser_documents_indexed_total",
			Help: "Number of documents successfully ingested.",
		}, nil),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wiser_flush_duration_seconds",
			Help:    "Duration of the buffer-to-store flush transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wiser_flush_failures_total",
			Help: "Number of flushes that rolled back.",
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wiser_query_duration_seconds",
			Help:    "Duration of a completed search query.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phrase", "scoring"}),
		bufferTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wiser_buffer_tokens",
			Help: "Distinct token ids currently buffered and unflushed.",
		}),
	}
	reg.MustRegister(p.documentsIndexed, p.flushDuration, p.flushFailures, p.queryDuration, p.bufferTokens)
	return p
}

// Registry returns the underlying prometheus.Registry for HTTP exposition.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) DocumentIndexed() {
	p.documentsIndexed.WithLabelValues().Inc()
}

func (p *Prometheus) FlushDuration(d time.Duration) {
	p.flushDuration.Observe(d.Seconds())
}

func (p *Prometheus) FlushFailure() {
	p.flushFailures.Inc()
}

func (p *Prometheus) QueryDuration(d time.Duration, phrase bool, scoring string) {
	p.queryDuration.WithLabelValues(boolLabel(phrase), scoring).Observe(d.Seconds())
}

func (p *Prometheus) BufferTokens(n int) {
	p.bufferTokens.Set(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
