package pending

import (
	"context"
	"sync"

	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
)

// InMemoryStore keeps continuations in process memory. Pending requests are
// lost on restart; use the Redis store when verdicts may outlive the process.
type InMemoryStore struct {
	mu        sync.Mutex
	pending   map[id.RequestID]models.PendingRequest
	resolving map[id.RequestID]models.PendingRequest
	outcomes  map[id.RequestID]models.Outcome
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		pending:   make(map[id.RequestID]models.PendingRequest),
		resolving: make(map[id.RequestID]models.PendingRequest),
		outcomes:  make(map[id.RequestID]models.Outcome),
	}
}

func (s *InMemoryStore) Put(_ context.Context, req *models.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known(req.ID) {
		return sentinel.ErrAlreadyExists
	}
	s.pending[req.ID] = clone(req)
	return nil
}

func (s *InMemoryStore) known(requestID id.RequestID) bool {
	_, p := s.pending[requestID]
	_, r := s.resolving[requestID]
	_, o := s.outcomes[requestID]
	return p || r || o
}

func (s *InMemoryStore) Take(_ context.Context, requestID id.RequestID) (*models.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.pending, requestID)
	s.resolving[requestID] = req
	out := clone(&req)
	return &out, nil
}

func (s *InMemoryStore) Withdraw(_ context.Context, requestID id.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[requestID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.pending, requestID)
	return nil
}

func (s *InMemoryStore) RecordOutcome(_ context.Context, outcome models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[outcome.RequestID] = outcome
	delete(s.resolving, outcome.RequestID)
	return nil
}

func (s *InMemoryStore) Lookup(_ context.Context, requestID id.RequestID) (*models.RequestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.outcomes[requestID]; ok {
		return &models.RequestStatus{Outcome: &o}, nil
	}
	if req, ok := s.resolving[requestID]; ok {
		c := clone(&req)
		return &models.RequestStatus{Pending: &c, Resolving: true}, nil
	}
	if req, ok := s.pending[requestID]; ok {
		c := clone(&req)
		return &models.RequestStatus{Pending: &c}, nil
	}
	return nil, sentinel.ErrNotFound
}

func clone(req *models.PendingRequest) models.PendingRequest {
	out := *req
	if req.Continuation.Credential != nil {
		vc := req.Continuation.Credential.Clone()
		out.Continuation.Credential = &vc
	}
	return out
}

var _ Store = (*InMemoryStore)(nil)
