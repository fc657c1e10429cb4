// Package consumer runs a Kafka consumer group over franz-go and hands each
// record to a Handler.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message represents a received Kafka message.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes consumed messages.
type Handler interface {
	// Handle processes a message. A returned error is retried with linear
	// backoff up to the configured attempt limit, then the message is skipped.
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Config holds consumer configuration.
type Config struct {
	Brokers      []string
	GroupID      string
	Topics       []string
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Consumer reads a consumer group with manual commits. Offsets are committed
// only after the handler finished with a record, so delivery is at-least-once.
type Consumer struct {
	client       *kgo.Client
	handler      Handler
	logger       *slog.Logger
	maxAttempts  int
	retryBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New creates a new Kafka consumer subscribed to cfg.Topics.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group ID not configured")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka consumer topics not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		client:       client,
		handler:      handler,
		logger:       logger,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins the consumption loop in a background goroutine.
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Consumer) run() {
	defer c.wg.Done()

	for {
		fetches := c.client.PollFetches(c.ctx)
		if fetches.IsClientClosed() || c.ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			c.handleRecord(r)
		})
	}
}

// handleRecord commits r once the handler accepted it or gave up on it.
// A record abandoned because the consumer is stopping stays uncommitted and
// is redelivered to the group.
func (c *Consumer) handleRecord(r *kgo.Record) {
	msg := toMessage(r)
	if err := c.process(msg); err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Error("skipping message after retries",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
	if err := c.client.CommitRecords(c.ctx, r); err != nil && c.ctx.Err() == nil {
		c.logger.Error("failed to commit offset",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

func (c *Consumer) process(msg *Message) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.handler.Handle(c.ctx, msg); err == nil {
			return nil
		}
		c.logger.Warn("failed to handle message",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"attempt", attempt,
			"error", err,
		)
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case <-time.After(c.retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}

// Stop gracefully stops the consumer and leaves the group.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.client.Close()
		return nil
	case <-ctx.Done():
		c.client.Close()
		return ctx.Err()
	}
}

// ErrClosed is reported by Check after Stop.
var ErrClosed = errors.New("kafka consumer closed")

// Check reports whether the consumer is running and a broker answers.
func (c *Consumer) Check(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping kafka: %w", err)
	}
	return nil
}
