package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VendorCallsTotal tracks outbound attempts per operation
	VendorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_vendor_calls_total",
			Help: "Total number of outbound vendor call attempts",
		},
		[]string{"operation"},
	)

	// VendorErrorsTotal tracks surfaced errors per operation and kind
	VendorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_vendor_errors_total",
			Help: "Total number of classified errors surfaced to callers",
		},
		[]string{"operation", "kind"},
	)

	// RetriesTotal tracks retries per operation and the kind that triggered them
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_retries_total",
			Help: "Total number of retries scheduled",
		},
		[]string{"operation", "kind"},
	)

	// VendorLatency tracks single-attempt latency
	VendorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolgate_vendor_latency_seconds",
			Help:    "Vendor call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// DeadLettersTotal tracks calls parked after exhausting their retries
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_dead_letters_total",
			Help: "Total number of calls pushed to the dead-letter queue",
		},
		[]string{"operation"},
	)

	// ComponentHealthy reports the last health check result per component (1 = healthy)
	ComponentHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolgate_component_healthy",
			Help: "Last health check result per component",
		},
		[]string{"component"},
	)

	// DBConnectionPoolUsage tracks database pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toolgate_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
