package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "app_crm_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// CacheHits tracks cache hits/misses
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_crm_cache_hits_total",
			Help: "Number of cache hits",
		},
		[]string{"operation"},
	)

	// DatabaseOperations tracks database operations
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_crm_database_operations_total",
			Help: "Number of database operations",
		},
		[]string{"operation", "status"},
	)

	// Registrations tracks person registrations by role and derived estado
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_crm_registrations_total",
			Help: "Number of persons registered",
		},
		[]string{"rol", "estado"},
	)

	// CapacityRejections tracks registrations refused by the team size guard
	CapacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_crm_capacity_rejections_total",
			Help: "Number of registrations rejected because the leader's team is full",
		},
		[]string{"rol"},
	)

	// Logins tracks login attempts
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_crm_logins_total",
			Help: "Number of login attempts",
		},
		[]string{"role", "status"},
	)

	// ImportedRows tracks spreadsheet rows by outcome
	ImportedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_crm_imported_rows_total",
			Help: "Number of spreadsheet rows processed by import",
		},
		[]string{"status"},
	)

	// OperationDuration tracks long-running batch operations such as imports
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "app_crm_operation_duration_seconds",
			Help:    "Duration of batch operations in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"operation"},
	)

	// ActiveConnections tracks active connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_crm_active_connections",
			Help: "Number of active connections",
		},
	)
)
