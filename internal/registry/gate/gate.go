// Package gate implements the authorization gate: it parks a continuation,
// asks the Authority whether a caller may act on a DID, and hands the
// continuation back exactly once when the verdict arrives.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vcregistry/internal/platform/tracer"
	"vcregistry/internal/registry/metrics"
	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/requestcontext"
)

// Dispatcher delivers one authorization request to the Authority.
// A nil return means the request is on its way; the verdict arrives later
// through Gate.Resume.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *models.PendingRequest) error
}

// PendingStore carries continuations across the suspension.
// Error Contract: see pending.Store.
type PendingStore interface {
	Put(ctx context.Context, req *models.PendingRequest) error
	Take(ctx context.Context, requestID id.RequestID) (*models.PendingRequest, error)
	Withdraw(ctx context.Context, requestID id.RequestID) error
	RecordOutcome(ctx context.Context, outcome models.Outcome) error
	Lookup(ctx context.Context, requestID id.RequestID) (*models.RequestStatus, error)
}

// Gate issues authorization requests and resolves their resumptions.
// It performs no retries and applies no timeouts: a request that is never
// resumed stays pending.
type Gate struct {
	pending    PendingStore
	dispatcher Dispatcher
	logger     *slog.Logger
	tracer     tracer.Tracer
	metrics    *metrics.Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gate) {
		g.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(pending PendingStore, dispatcher Dispatcher, opts ...Option) *Gate {
	g := &Gate{
		pending:    pending,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.tracer == nil {
		g.tracer = tracer.NewNoop()
	}
	return g
}

// Request parks the continuation and dispatches one authorization request
// for (did, caller) to authority. If dispatch fails the continuation is
// withdrawn, so a failed request leaves nothing behind.
func (g *Gate) Request(ctx context.Context, authority id.Address, did id.DID, caller id.Address, c models.Continuation) (_ *models.PendingRequest, err error) {
	ctx, span := g.tracer.Start(ctx, tracer.SpanGateRequest,
		tracer.String(tracer.AttrDID, did.String()),
		tracer.String(tracer.AttrOperation, string(c.Kind)),
		tracer.String(tracer.AttrAuthority, authority.String()),
	)
	defer func() { span.End(err) }()

	if authority.IsZero() {
		return nil, dErrors.New(dErrors.CodeAuthorityNotConfigured, "authority address is not configured")
	}
	if did != c.IssuerDID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "continuation DID does not match the authorized DID")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	req := &models.PendingRequest{
		ID:           id.NewRequestID(),
		Kind:         c.Kind,
		Authority:    authority,
		DID:          did,
		Caller:       caller,
		Continuation: c,
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}
	span.SetAttributes(tracer.String(tracer.AttrRequestID, req.ID.String()))

	if err := g.pending.Put(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pending request")
	}
	span.AddEvent(tracer.EventContinuationStored)
	g.metrics.IncrementRequested(string(req.Kind))

	if err := g.dispatch(ctx, req); err != nil {
		g.withdraw(ctx, req)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to dispatch authorization request")
	}

	g.logger.InfoContext(ctx, "authorization requested",
		"request_id", req.ID.String(),
		"operation", string(req.Kind),
		"did", did.String(),
		"vc_id", c.VCID.String(),
		"caller", caller.String(),
		"authority", authority.String(),
	)
	return req, nil
}

func (g *Gate) dispatch(ctx context.Context, req *models.PendingRequest) (err error) {
	ctx, span := g.tracer.Start(ctx, tracer.SpanGateDispatch,
		tracer.String(tracer.AttrRequestID, req.ID.String()),
	)
	defer func() { span.End(err) }()
	return g.dispatcher.Dispatch(ctx, req)
}

func (g *Gate) withdraw(ctx context.Context, req *models.PendingRequest) {
	g.metrics.IncrementDispatchFailed(string(req.Kind))
	if err := g.pending.Withdraw(ctx, req.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		g.logger.ErrorContext(ctx, "failed to withdraw pending request after dispatch failure",
			"request_id", req.ID.String(),
			"error", err,
		)
	}
}

// Resume takes the continuation for r.RequestID exactly once. Unknown or
// already-resumed ids yield CodeNotFound. A failed verdict yields
// CodeAuthorizationDenied together with the request, which is dropped.
func (g *Gate) Resume(ctx context.Context, r models.Resumption) (*models.PendingRequest, error) {
	req, err := g.pending.Take(ctx, r.RequestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no pending request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to take pending request")
	}
	if !r.Success {
		return req, dErrors.New(dErrors.CodeAuthorizationDenied,
			fmt.Sprintf("authority denied %s for %s", req.Kind, req.DID))
	}
	return req, nil
}

// Record stores the outcome of a resolved request and updates metrics.
// Failures are logged: the store mutation, if any, has already happened and
// the request keeps reading as resolving.
func (g *Gate) Record(ctx context.Context, req *models.PendingRequest, outcome models.Outcome) {
	g.metrics.ObserveResolved(string(req.Kind), string(outcome.Status), req.CreatedAt, outcome.ResolvedAt)
	if err := g.pending.RecordOutcome(ctx, outcome); err != nil {
		g.logger.ErrorContext(ctx, "failed to record request outcome",
			"request_id", req.ID.String(),
			"status", string(outcome.Status),
			"error", err,
		)
	}
}

// Status reports whether a request is still pending or how it ended.
func (g *Gate) Status(ctx context.Context, requestID id.RequestID) (*models.RequestStatus, error) {
	status, err := g.pending.Lookup(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up request")
	}
	return status, nil
}
