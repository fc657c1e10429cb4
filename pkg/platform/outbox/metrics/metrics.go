// Package metrics instruments the outbox relay. A nil *Metrics records
// nothing, so the worker can call it unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure stages.
const (
	StageFetch   = "fetch"
	StagePublish = "publish"
	StageMark    = "mark"
	StagePrune   = "prune"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  prometheus.Counter
	PrunedTotal     prometheus.Counter
	Failures        *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	PollDuration    prometheus.Histogram
}

// New registers the outbox metrics with reg, or the default registry when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "vcregistry_outbox_pending",
			Help: "Authorization requests written to the outbox and not yet relayed.",
		}),
		PublishedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vcregistry_outbox_published_total",
			Help: "Outbox entries relayed to Kafka and marked processed.",
		}),
		PrunedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vcregistry_outbox_pruned_total",
			Help: "Processed outbox entries deleted after the retention period.",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcregistry_outbox_failures_total",
			Help: "Outbox relay failures by stage (fetch, publish, mark, prune).",
		}, []string{"stage"}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcregistry_outbox_publish_duration_seconds",
			Help:    "Time to publish one entry, broker acknowledgement included.",
			Buckets: latencyBuckets,
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcregistry_outbox_batch_size",
			Help:    "Entries fetched per poll.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		PollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcregistry_outbox_poll_duration_seconds",
			Help:    "Time for one non-empty poll cycle.",
			Buckets: latencyBuckets,
		}),
	}
}

func (m *Metrics) SetPendingDepth(count int64) {
	if m != nil {
		m.PendingDepth.Set(float64(count))
	}
}

func (m *Metrics) IncPublished() {
	if m != nil {
		m.PublishedTotal.Inc()
	}
}

func (m *Metrics) AddPruned(n int64) {
	if m != nil {
		m.PrunedTotal.Add(float64(n))
	}
}

func (m *Metrics) IncFailure(stage string) {
	if m != nil {
		m.Failures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObservePublishDuration(seconds float64) {
	if m != nil {
		m.PublishDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveBatchSize(size int) {
	if m != nil {
		m.BatchSize.Observe(float64(size))
	}
}

func (m *Metrics) ObservePollDuration(seconds float64) {
	if m != nil {
		m.PollDuration.Observe(seconds)
	}
}
