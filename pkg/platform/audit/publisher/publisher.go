// Package publisher persists audit events, optionally off the request path.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "vcregistry/pkg/platform/audit"
)

// Publisher appends audit events to a store. In async mode a single
// goroutine drains a bounded buffer; when the buffer is full or the
// publisher is closed, events are written through synchronously so the
// trail of registry changes is never dropped.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	mu     sync.RWMutex
	events chan audit.Event
	closed bool
	wg     sync.WaitGroup
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async persistence with a buffer of size events.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.events != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"did", string(event.DID),
				"request_id", event.RequestID,
			)
		}
	}
}

// Emit stamps a missing timestamp and hands the event to the store.
// Synchronous writes return the store's error; queued writes report
// failures through the logger.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	if p.events != nil && !p.closed {
		select {
		case p.events <- event:
			p.mu.RUnlock()
			return nil
		default:
			p.logger.WarnContext(ctx, "audit buffer full, writing through",
				"action", event.Action,
				"did", string(event.DID),
			)
		}
	}
	p.mu.RUnlock()

	return p.store.Append(ctx, event)
}

// Close stops accepting queued events and waits for the buffer to drain.
// Later Emit calls write through. Calling Close twice is safe.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed || p.events == nil {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	p.wg.Wait()
}
