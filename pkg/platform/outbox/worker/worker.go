// Package worker relays outbox entries to Kafka.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vcregistry/internal/platform/kafka/producer"
	"vcregistry/pkg/platform/outbox"
	"vcregistry/pkg/platform/outbox/metrics"
)

// Producer publishes one message synchronously.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox and publishes entries in creation order.
// Delivery is at-least-once: an entry published but not marked is
// published again on the next poll, so consumers must be idempotent.
type Worker struct {
	store        outbox.Store
	producer     Producer
	defaultTopic string
	batchSize    int
	pollInterval time.Duration
	drainTimeout time.Duration
	retention    time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	lastPrune time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type Option func(*Worker)

// WithDefaultTopic routes entries that do not name a topic.
func WithDefaultTopic(topic string) Option {
	return func(w *Worker) { w.defaultTopic = topic }
}

func WithBatchSize(size int) Option {
	return func(w *Worker) { w.batchSize = size }
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) { w.pollInterval = interval }
}

// WithDrainTimeout bounds the final flush on shutdown.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(w *Worker) { w.drainTimeout = timeout }
}

// WithRetention deletes processed entries once they are older than d.
// Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) { w.retention = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func New(store outbox.Store, prod Producer, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:        store,
		producer:     prod,
		defaultTopic: "vcregistry.authority.requests",
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
		drainTimeout: 10 * time.Second,
		logger:       slog.Default(),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the poll loop until Stop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case now := <-ticker.C:
			w.Poll(w.ctx)
			w.refreshDepth(w.ctx)
			w.Prune(w.ctx, now)
		}
	}
}

// Poll relays one batch and returns how many entries were published and
// marked processed. A failed entry stays pending and is retried once the
// store releases it.
func (w *Worker) Poll(ctx context.Context) int {
	start := time.Now()
	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		w.metrics.IncFailure(metrics.StageFetch)
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	w.metrics.ObserveBatchSize(len(entries))

	relayed := 0
	for _, entry := range entries {
		if w.relay(ctx, entry) {
			relayed++
		}
	}
	w.metrics.ObservePollDuration(time.Since(start).Seconds())
	return relayed
}

// Prune deletes processed entries past the retention period. It runs at
// most once per tenth of the retention so the delete stays off the hot path.
func (w *Worker) Prune(ctx context.Context, now time.Time) int64 {
	if w.retention <= 0 || now.Sub(w.lastPrune) < w.retention/10 {
		return 0
	}
	w.lastPrune = now
	removed, err := w.store.DeleteProcessedBefore(ctx, now.Add(-w.retention))
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to prune outbox", "error", err)
		w.metrics.IncFailure(metrics.StagePrune)
		return 0
	}
	if removed > 0 {
		w.logger.DebugContext(ctx, "pruned processed outbox entries", "removed", removed)
		w.metrics.AddPruned(removed)
	}
	return removed
}

func (w *Worker) relay(ctx context.Context, entry *outbox.Entry) bool {
	start := time.Now()
	if err := w.producer.Produce(ctx, w.message(entry)); err != nil {
		w.logger.ErrorContext(ctx, "failed to publish outbox entry",
			"id", entry.ID,
			"aggregate_id", entry.AggregateID,
			"event_type", entry.EventType,
			"error", err,
		)
		w.metrics.IncFailure(metrics.StagePublish)
		return false
	}
	w.metrics.ObservePublishDuration(time.Since(start).Seconds())

	if err := w.store.MarkProcessed(ctx, entry.ID, time.Now()); err != nil {
		// Published but still pending: the next poll sends a duplicate.
		w.logger.ErrorContext(ctx, "failed to mark outbox entry processed",
			"id", entry.ID,
			"error", err,
		)
		w.metrics.IncFailure(metrics.StageMark)
		return false
	}
	w.metrics.IncPublished()
	return true
}

// message keys the record by aggregate id so every message about one
// authorization request keeps its order on a single partition.
func (w *Worker) message(entry *outbox.Entry) *producer.Message {
	topic := entry.Topic
	if topic == "" {
		topic = w.defaultTopic
	}
	return &producer.Message{
		Topic: topic,
		Key:   []byte(entry.AggregateID),
		Value: entry.Payload,
		Headers: map[string]string{
			"outbox_id":      entry.ID.String(),
			"aggregate_type": entry.AggregateType,
			"event_type":     entry.EventType,
		},
	}
}

// drain relays what is left after Stop, giving up when a whole batch fails
// or the drain timeout passes.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
		if err != nil {
			w.logger.Error("failed to fetch outbox entries during drain", "error", err)
			return
		}
		if len(entries) == 0 {
			return
		}
		progressed := false
		for _, entry := range entries {
			if w.relay(ctx, entry) {
				progressed = true
			}
		}
		if !progressed {
			w.logger.Warn("outbox drain stopped with entries pending", "pending", len(entries))
			return
		}
	}
}

func (w *Worker) refreshDepth(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	if count, err := w.store.CountPending(ctx); err == nil {
		w.metrics.SetPendingDepth(count)
	}
}

// Stop cancels polling and waits for the drain to finish or ctx to end.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
