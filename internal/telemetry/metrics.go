package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency, shared across all routes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "platform",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

var TenantsDeployedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "provisioner",
		Name:      "tenants_deployed_total",
		Help:      "Total number of tenants successfully deployed.",
	},
)

var TenantsDeletedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "provisioner",
		Name:      "tenants_deleted_total",
		Help:      "Total number of tenants deleted.",
	},
)

var ProvisioningFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "provisioner",
		Name:      "failures_total",
		Help:      "Total number of provisioning failures by step.",
	},
	[]string{"step"},
)

var ProxySyncFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "proxysync",
		Name:      "failures_total",
		Help:      "Total number of reverse-proxy synchronization failures.",
	},
)

var MonitorScrapeDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "platform",
		Subsystem: "monitor",
		Name:      "scrape_duration_seconds",
		Help:      "Duration of one resource-monitor scrape pass across all tenants.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
)

var MonitorScrapeErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "monitor",
		Name:      "scrape_errors_total",
		Help:      "Total number of per-tenant stats collection failures.",
	},
)

var AuditBufferDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "audit",
		Name:      "buffer_dropped_total",
		Help:      "Total number of audit entries dropped because the buffer was full.",
	},
)

// All returns the platform-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		TenantsDeployedTotal,
		TenantsDeletedTotal,
		ProvisioningFailuresTotal,
		ProxySyncFailuresTotal,
		MonitorScrapeDuration,
		MonitorScrapeErrorsTotal,
		AuditBufferDroppedTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTP request metric, and any additional service-specific
// collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
