package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for registry operations.
// All methods are safe on a nil receiver.
type Metrics struct {
	AuthorizationRequests *prometheus.CounterVec
	DispatchFailures      *prometheus.CounterVec
	Resumptions           *prometheus.CounterVec
	PendingRequests       prometheus.Gauge
	AuthorizationLatency  *prometheus.HistogramVec
	AuthorityChanges      prometheus.Counter
}

// New registers the registry metrics with reg (default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		AuthorizationRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcregistry_authorization_requests_total",
			Help: "Authorization requests issued to the Authority, labeled by operation",
		}, []string{"operation"}),
		DispatchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcregistry_authorization_dispatch_failures_total",
			Help: "Authorization requests withdrawn because dispatch failed, labeled by operation",
		}, []string{"operation"}),
		Resumptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcregistry_resumptions_total",
			Help: "Resolved authorization requests, labeled by operation and outcome",
		}, []string{"operation", "outcome"}),
		PendingRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "vcregistry_pending_requests",
			Help: "Authorization requests issued by this process and not yet resumed",
		}),
		AuthorizationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vcregistry_authorization_latency_seconds",
			Help:    "Time from authorization request to resumption",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"operation"}),
		AuthorityChanges: f.NewCounter(prometheus.CounterOpts{
			Name: "vcregistry_authority_changes_total",
			Help: "Successful ConfigureAuthority calls",
		}),
	}
}

func (m *Metrics) IncrementRequested(operation string) {
	if m == nil {
		return
	}
	m.AuthorizationRequests.WithLabelValues(operation).Inc()
	m.PendingRequests.Inc()
}

func (m *Metrics) IncrementDispatchFailed(operation string) {
	if m == nil {
		return
	}
	m.DispatchFailures.WithLabelValues(operation).Inc()
	m.PendingRequests.Dec()
}

// ObserveResolved records a resumption and how long the request was outstanding.
func (m *Metrics) ObserveResolved(operation, outcome string, requestedAt, resolvedAt time.Time) {
	if m == nil {
		return
	}
	m.Resumptions.WithLabelValues(operation, outcome).Inc()
	m.PendingRequests.Dec()
	if !requestedAt.IsZero() && resolvedAt.After(requestedAt) {
		m.AuthorizationLatency.WithLabelValues(operation).Observe(resolvedAt.Sub(requestedAt).Seconds())
	}
}

func (m *Metrics) IncrementAuthorityChanged() {
	if m == nil {
		return
	}
	m.AuthorityChanges.Inc()
}
