package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the insured registry.
// Tracks write outcomes, per-operation latency and cache effectiveness.
type Metrics struct {
	RecordsCreated       prometheus.Counter
	RecordsUpdated       prometheus.Counter
	RecordsDeleted       prometheus.Counter
	ConcurrencyConflicts prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
	CacheRequests        *prometheus.CounterVec
}

// New registers the registry metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "insured_records_created_total",
			Help: "Total number of insured persons registered",
		}),
		RecordsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "insured_records_updated_total",
			Help: "Total number of insured person updates applied",
		}),
		RecordsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "insured_records_deleted_total",
			Help: "Total number of insured persons removed",
		}),
		ConcurrencyConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "insured_concurrency_conflicts_total",
			Help: "Writes rejected because the record changed since it was read",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insured_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: operationBuckets,
		}, []string{"operation"}),
		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insured_cache_requests_total",
			Help: "Cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.RecordsCreated.Inc()
}

func (m *Metrics) IncrementUpdated() {
	m.RecordsUpdated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.RecordsDeleted.Inc()
}

func (m *Metrics) IncrementConflicts() {
	m.ConcurrencyConflicts.Inc()
}

// ObserveOperation records how long operation took.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveCache counts one cache lookup outcome.
func (m *Metrics) ObserveCache(result string) {
	m.CacheRequests.WithLabelValues(result).Inc()
}
