// Package telemetry provides OpenTelemetry instrumentation for the discovery
// engine. It exports Prometheus metrics and provides tracing capabilities.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "discovery"

// Metrics holds all discovery Prometheus metrics
type Metrics struct {
	// Job lifecycle metrics
	JobsStarted   *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec

	// Invocation metrics
	InvocationDuration *prometheus.HistogramVec
	UpstreamCalls      *prometheus.CounterVec
	UpstreamErrors     *prometheus.CounterVec
	VersionConflicts   prometheus.Counter

	// Dedup metrics
	RecordsSeen     *prometheus.CounterVec
	RecordsAccepted *prometheus.CounterVec
	RecordsTrimmed  *prometheus.CounterVec

	// Queue metrics
	QueueDepth      prometheus.Gauge
	DelayedDepth    prometheus.Gauge
	MessagesDropped prometheus.Counter
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initJobMetrics(m)
	initInvocationMetrics(m)
	initDedupMetrics(m)
	initQueueMetrics(m)
	return m
}

func initJobMetrics(m *Metrics) {
	m.JobsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_jobs_started_total",
		Help: "Total jobs that entered processing",
	}, []string{"platform"})

	m.JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_jobs_completed_total",
		Help: "Total jobs completed, by completion reason",
	}, []string{"platform", "reason"})

	m.JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_jobs_failed_total",
		Help: "Total jobs that ended in the error status",
	}, []string{"platform"})
}

func initInvocationMetrics(m *Metrics) {
	m.InvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discovery_invocation_duration_seconds",
		Help:    "Time for one controller invocation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	}, []string{"platform"})

	m.UpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_upstream_calls_total",
		Help: "Total upstream search API calls",
	}, []string{"platform"})

	m.UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_upstream_errors_total",
		Help: "Total upstream search API failures",
	}, []string{"platform"})

	m.VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_version_conflicts_total",
		Help: "Total job writes discarded due to a stale version",
	})
}

func initDedupMetrics(m *Metrics) {
	m.RecordsSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_records_seen_total",
		Help: "Total candidate records returned by adapters",
	}, []string{"platform"})

	m.RecordsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_records_accepted_total",
		Help: "Total records accepted as unique after deduplication",
	}, []string{"platform"})

	m.RecordsTrimmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_records_trimmed_total",
		Help: "Total unique records discarded to hold the exact target count",
	}, []string{"platform"})
}

func initQueueMetrics(m *Metrics) {
	m.QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discovery_queue_depth",
		Help: "Current length of the invocation stream",
	})

	m.DelayedDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discovery_delayed_depth",
		Help: "Current size of the delayed invocation set",
	})

	m.MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_messages_dropped_total",
		Help: "Total invocations dropped after exceeding max deliveries",
	})
}
