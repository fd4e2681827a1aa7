// Package metrics exposes signal engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/aegis-signal/internal/contracts"
)

const namespace = "aegis_signal"

// Recorder implements the engine, index and API metric hooks using Prometheus.
type Recorder struct {
	reg prometheus.Gatherer

	signals     *prometheus.CounterVec
	lookupMiss  *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	indexBuild  prometheus.Histogram
	poolSize    prometheus.Gauge
	httpLatency *prometheus.HistogramVec
}

// New creates a recorder on its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves from g
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		reg: g,
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Signals recorded by the engine",
			},
			[]string{"mode", "type", "strength"},
		),
		lookupMiss: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookup_miss_total",
				Help:      "Rebalance evaluations skipped for missing forecast data",
			},
			[]string{"mode"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of signal runs",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		indexBuild: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_build_seconds",
				Help:      "Duration of Top-K index construction",
				Buckets:   prometheus.DefBuckets,
			},
		),
		poolSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pool_size",
				Help:      "Size of the most recently published pool",
			},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of API routes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// RecordSignal counts one recorded signal
func (r *Recorder) RecordSignal(mode string, typ contracts.SignalType, strength contracts.SignalStrength) {
	r.signals.WithLabelValues(mode, string(typ), string(strength)).Inc()
}

// RecordLookupMiss counts one skipped evaluation
func (r *Recorder) RecordLookupMiss(mode string) {
	r.lookupMiss.WithLabelValues(mode).Inc()
}

// RecordRun observes a run duration in seconds
func (r *Recorder) RecordRun(kind string, seconds float64) {
	r.runDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordIndexBuild observes an index build duration in seconds
func (r *Recorder) RecordIndexBuild(seconds float64) {
	r.indexBuild.Observe(seconds)
}

// RecordPoolSize sets the last published pool size
func (r *Recorder) RecordPoolSize(n int) {
	r.poolSize.Set(float64(n))
}

// RecordHTTP observes API route latency in seconds
func (r *Recorder) RecordHTTP(route, method string, seconds float64) {
	r.httpLatency.WithLabelValues(route, method).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
