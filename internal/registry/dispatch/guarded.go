package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"vcregistry/internal/registry/models"
	"vcregistry/pkg/platform/circuit"
)

// ErrCircuitOpen is reported by Guarded.Check while dispatch keeps failing.
var ErrCircuitOpen = errors.New("authority dispatch circuit open")

// Dispatcher is the contract Guarded wraps.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *models.PendingRequest) error
}

// Guarded tracks consecutive dispatch failures. Every request still goes to
// the wrapped dispatcher; an open circuit only fails the readiness check so
// the replica is drained while the Authority channel is broken.
type Guarded struct {
	next    Dispatcher
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next Dispatcher, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Dispatch(ctx context.Context, req *models.PendingRequest) error {
	err := g.next.Dispatch(ctx, req)
	if err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.ErrorContext(ctx, "circuit breaker opened",
				"circuit", g.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "circuit breaker closed",
			"circuit", g.breaker.Name(),
		)
	}
	return nil
}

// Check implements a health check over the circuit state.
func (g *Guarded) Check(context.Context) error {
	if g.breaker.IsOpen() {
		return ErrCircuitOpen
	}
	return nil
}
