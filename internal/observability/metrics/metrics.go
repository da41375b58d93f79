// Package metrics exposes prometheus instrumentation for the billing
// sync dispatcher and tenant resolution.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	syncJobRuns     *prometheus.CounterVec
	syncJobRetries  *prometheus.CounterVec
	syncJobFailures *prometheus.CounterVec
	syncJobDuration *prometheus.HistogramVec
	queueDepth      *prometheus.GaugeVec

	tenantResolutions *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	defaultInst *Metrics
)

// Default returns the process-wide metrics instance.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInst = New(prometheus.NewRegistry())
	})
	return defaultInst
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		syncJobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_sync_job_runs_total",
			Help: "Billing sync job executions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		syncJobRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_sync_job_retries_total",
			Help: "Billing sync job retries by kind.",
		}, []string{"kind"}),
		syncJobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_sync_job_failures_total",
			Help: "Billing sync jobs marked failed after exhausting attempts.",
		}, []string{"kind"}),
		syncJobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atlas_sync_job_duration_seconds",
			Help:    "Billing sync job execution time by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atlas_sync_queue_depth",
			Help: "Pending billing sync jobs by queue.",
		}, []string{"queue"}),
		tenantResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_tenant_resolutions_total",
			Help: "Tenant resolution attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
	}

	registry.MustRegister(
		m.syncJobRuns,
		m.syncJobRetries,
		m.syncJobFailures,
		m.syncJobDuration,
		m.queueDepth,
		m.tenantResolutions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveSyncJob(kind string, outcome string, elapsed time.Duration) {
	m.syncJobRuns.WithLabelValues(kind, outcome).Inc()
	m.syncJobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) IncSyncRetry(kind string) {
	m.syncJobRetries.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncSyncFailure(kind string) {
	m.syncJobFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (m *Metrics) IncTenantResolution(strategy, outcome string) {
	m.tenantResolutions.WithLabelValues(normalizeLabel(strategy), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
