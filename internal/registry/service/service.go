// Package service is the registry's contract state surface. Every entry
// point and every resumption runs under one instance lock, so the store is
// only ever touched by a single logical thread of control.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"vcregistry/internal/platform/tracer"
	"vcregistry/internal/registry/metrics"
	"vcregistry/internal/registry/models"
	"vcregistry/internal/registry/store"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/audit"
	"vcregistry/pkg/requestcontext"
)

// AuthorizationGate parks continuations and resolves verdicts.
// Satisfied by *gate.Gate.
type AuthorizationGate interface {
	Request(ctx context.Context, authority id.Address, did id.DID, caller id.Address, c models.Continuation) (*models.PendingRequest, error)
	Resume(ctx context.Context, r models.Resumption) (*models.PendingRequest, error)
	Record(ctx context.Context, req *models.PendingRequest, outcome models.Outcome)
	Status(ctx context.Context, requestID id.RequestID) (*models.RequestStatus, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditor(auditor *audit.Logger) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service composes the credential store, contract state and gate.
type Service struct {
	mu sync.Mutex

	credentials store.CredentialStore
	state       store.StateStore
	gate        AuthorizationGate

	auditor *audit.Logger
	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
}

func New(credentials store.CredentialStore, state store.StateStore, gate AuthorizationGate, opts ...Option) *Service {
	s := &Service{
		credentials: credentials,
		state:       state,
		gate:        gate,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = tracer.NewNoop()
	}
	return s
}

// Initialize creates the contract state with owner as deployer, or loads the
// existing state. A persisted owner or variant always wins over the values
// passed in; a mismatch is logged.
func (s *Service) Initialize(ctx context.Context, owner id.Address, variant models.Variant) (*models.ContractState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, created, err := s.state.Initialize(ctx, owner, variant, requestcontext.Now(ctx).UTC())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize registry state")
	}
	if created {
		s.logger.InfoContext(ctx, "registry state created",
			"owner", st.Owner.String(),
			"variant", string(st.Variant),
		)
	} else {
		if st.Owner != owner {
			s.logger.WarnContext(ctx, "configured owner differs from persisted owner; keeping persisted owner",
				"configured", owner.String(),
				"persisted", st.Owner.String(),
			)
		}
		if st.Variant != variant {
			s.logger.WarnContext(ctx, "configured variant differs from persisted variant; keeping persisted variant",
				"configured", string(variant),
				"persisted", string(st.Variant),
			)
		}
	}
	if st.Variant == models.VariantPerCall {
		s.logger.WarnContext(ctx, "per-call variant active: callers nominate the authority on every request")
	}
	return st, nil
}

// State returns the current contract state.
func (s *Service) State(ctx context.Context) (*models.ContractState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadState(ctx)
}

func (s *Service) loadState(ctx context.Context) (*models.ContractState, error) {
	st, err := s.state.Load(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInternal, "registry state is not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry state")
	}
	return st, nil
}

// ConfigureAuthority sets the authority address. Owner only, gated variant
// only. Any address is accepted, including the current one; the zero address
// returns the registry to the unconfigured state.
func (s *Service) ConfigureAuthority(ctx context.Context, caller, authority id.Address) (*models.ContractState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if st.Variant != models.VariantGated {
		return nil, dErrors.New(dErrors.CodeBadRequest, "authority configuration is not supported in per-call mode")
	}
	if caller != st.Owner {
		s.logger.WarnContext(ctx, "authority configuration refused",
			"caller", caller.String(),
		)
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "only the owner may configure the authority")
	}
	if err := s.state.SetAuthority(ctx, authority); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store authority address")
	}
	st.Authority = authority

	s.metrics.IncrementAuthorityChanged()
	s.auditor.Record(ctx, audit.Event{
		Action:    string(audit.EventAuthorityConfigured),
		Caller:    caller.String(),
		Authority: authority.String(),
		Outcome:   "success",
	})
	return st, nil
}

// Credential returns one stored credential.
func (s *Service) Credential(ctx context.Context, did id.DID, vcID id.VCID) (*models.VerifiableCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vc, err := s.credentials.Find(ctx, did, vcID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return vc, nil
}

// Credentials lists the credentials under did ordered by VC id. An unknown
// DID yields an empty list.
func (s *Service) Credentials(ctx context.Context, did id.DID) ([]models.StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.credentials.ListByDID(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return list, nil
}

// DIDs lists every DID that holds a credential, in lexicographic order.
func (s *Service) DIDs(ctx context.Context) ([]id.DID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dids, err := s.credentials.ListDIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list DIDs")
	}
	return dids, nil
}

// Request reports the status of an authorization request. It waits for any
// in-flight resumption on this instance, so the answer is never taken between
// the continuation leaving the pending store and its outcome being recorded.
func (s *Service) Request(ctx context.Context, requestID id.RequestID) (*models.RequestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Status(ctx, requestID)
}
