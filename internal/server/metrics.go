package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds application metrics. It also receives finder events.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	findsTotal      *prometheus.CounterVec
	findDuration    prometheus.Histogram
	commonTokens    prometheus.Histogram
	filesDropped    *prometheus.CounterVec
	cleanupFailures prometheus.Counter
	sweptArtifacts  prometheus.Counter
	sweepErrors     prometheus.Counter

	info *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics set on its own registry.
func NewMetrics(version string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ca_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ca_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		findsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ca_find_common_total",
				Help: "Find-common requests by outcome",
			},
			[]string{"outcome"},
		),
		findDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ca_find_common_duration_seconds",
				Help:    "Time spent staging, normalizing and intersecting one request",
				Buckets: prometheus.DefBuckets,
			},
		),
		commonTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ca_common_tokens",
				Help:    "Number of common tokens returned per successful request",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		filesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ca_files_dropped_total",
				Help: "Uploaded files excluded from intersection, by reason",
			},
			[]string{"reason"},
		),
		cleanupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ca_artifact_cleanup_failures_total",
				Help: "Staged artifacts that could not be deleted after a request",
			},
		),
		sweptArtifacts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ca_swept_artifacts_total",
				Help: "Orphaned artifacts removed by the sweeper",
			},
		),
		sweepErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ca_sweep_errors_total",
				Help: "Sweeper runs that failed",
			},
		),
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ca_info",
				Help: "Application version info",
			},
			[]string{"version"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.findsTotal,
		m.findDuration,
		m.commonTokens,
		m.filesDropped,
		m.cleanupFailures,
		m.sweptArtifacts,
		m.sweepErrors,
		m.info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.info.WithLabelValues(version).Set(1)

	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// FileDropped implements finder.Observer.
func (m *Metrics) FileDropped(reason string) {
	m.filesDropped.WithLabelValues(reason).Inc()
}

// CleanupFailed implements finder.Observer.
func (m *Metrics) CleanupFailed() {
	m.cleanupFailures.Inc()
}

// FindCompleted implements finder.Observer.
func (m *Metrics) FindCompleted(outcome string, common int, d time.Duration) {
	m.findsTotal.WithLabelValues(outcome).Inc()
	m.findDuration.Observe(d.Seconds())
	if outcome == "ok" {
		m.commonTokens.Observe(float64(common))
	}
}

// RecordSweep is the sweeper callback.
func (m *Metrics) RecordSweep(removed int, err error) {
	if err != nil {
		m.sweepErrors.Inc()
	}
	m.sweptArtifacts.Add(float64(removed))
}
