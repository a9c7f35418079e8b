package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	syncRuns      *prometheus.CounterVec // total syncs
	syncDuration  prometheus.Histogram   // time to sync
	dnsOperations *prometheus.CounterVec // planned rewrite changes
	dnsRequests   *prometheus.CounterVec // dns control api requests
	authAttempts  *prometheus.CounterVec // login attempts
	desiredHosts  prometheus.Gauge       // hosts found in routing config
	managedHosts  prometheus.Gauge       // owned rewrites on the dns server
	triggers      *prometheus.CounterVec // reconciliation triggers by source
}

// Public interface for metrics operations
func (m *Metrics) IncSyncRun(success bool) {
	status := boolToResult(success)
	m.syncRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) SetSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncDNSOperation(operation, recordType string) {
	if !isValidOperation(operation) || !isValidRecordType(recordType) {
		return
	}
	m.dnsOperations.WithLabelValues(operation, recordType).Inc()
}

func (m *Metrics) IncDNSRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	status := boolToResult(success)
	m.dnsRequests.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) IncAuthAttempt(success bool) {
	m.authAttempts.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetDesiredHosts(count int) {
	m.desiredHosts.Set(float64(count))
}

func (m *Metrics) SetManagedHosts(count int) {
	m.managedHosts.Set(float64(count))
}

func (m *Metrics) IncTrigger(source string) {
	m.triggers.WithLabelValues(source).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "create", "read", "delete", "skip":
		return true
	}
	return false
}

func isValidRecordType(rt string) bool {
	switch rt {
	case "A", "AAAA", "CNAME":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "adguard_dns_sync"

	m := &Metrics{
		registry: registry,

		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of synchronization runs",
		}, []string{"status"}),

		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of synchronization runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		dnsOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_operations_total",
			Help:      "Total DNS rewrite operations planned by app",
		}, []string{"operation", "type"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS control API requests",
		}, []string{"operation", "status"}),

		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total DNS control API login attempts",
		}, []string{"status"}),

		desiredHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "desired_hosts_current",
			Help:      "Hosts currently declared in the routing configuration",
		}),

		managedHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "managed_hosts_current",
			Help:      "Rewrites owned by this service before the last sync",
		}),

		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Total reconciliation triggers by source",
		}, []string{"source"}),
	}

	if register {
		registry.MustRegister(
			m.syncRuns,
			m.syncDuration,
			m.dnsOperations,
			m.dnsRequests,
			m.authAttempts,
			m.desiredHosts,
			m.managedHosts,
			m.triggers,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
