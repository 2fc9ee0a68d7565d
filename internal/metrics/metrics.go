// Package metrics owns the Prometheus collectors for HTTP traffic, the order
// ledger and stock reservations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "perfume_store"

// Metrics groups every collector the service exports. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	orderOperations  *prometheus.CounterVec
	stockReservation *prometheus.CounterVec
	stockReleases    prometheus.Counter
}

// New registers the collectors on reg. A nil registerer yields a no-op value.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path", "status"}),
		orderOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_operations_total",
			Help:      "Order ledger operations by outcome.",
		}, []string{"operation", "status"}),
		stockReservation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reservations_total",
			Help:      "Stock reservation attempts by result.",
		}, []string{"result"}),
		stockReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_releases_total",
			Help:      "Stock releases applied to the catalog.",
		}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.orderOperations, m.stockReservation, m.stockReleases)
	return m
}

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.httpDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

// RecordOrderOperation counts a ledger operation such as "create" or "cancel".
func (m *Metrics) RecordOrderOperation(operation string, success bool) {
	if m == nil || m.orderOperations == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.orderOperations.WithLabelValues(operation, status).Inc()
}

// RecordReservation counts a reservation outcome: "reserved", "insufficient",
// "not_found" or "error".
func (m *Metrics) RecordReservation(result string) {
	if m == nil || m.stockReservation == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.stockReservation.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRelease() {
	if m == nil || m.stockReleases == nil {
		return
	}
	m.stockReleases.Inc()
}
