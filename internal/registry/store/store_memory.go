package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
)

// InMemoryStore keeps credentials in nested maps. Reads return deep copies.
type InMemoryStore struct {
	mu  sync.RWMutex
	vcs map[id.DID]map[id.VCID]models.VerifiableCredential
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{vcs: make(map[id.DID]map[id.VCID]models.VerifiableCredential)}
}

func (s *InMemoryStore) Insert(_ context.Context, did id.DID, vcID id.VCID, vc models.VerifiableCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner, ok := s.vcs[did]
	if !ok {
		inner = make(map[id.VCID]models.VerifiableCredential)
		s.vcs[did] = inner
	}
	if _, exists := inner[vcID]; exists {
		return sentinel.ErrAlreadyExists
	}
	inner[vcID] = vc.Clone()
	return nil
}

func (s *InMemoryStore) SetRevoked(_ context.Context, did id.DID, vcID id.VCID, revoked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner, ok := s.vcs[did]
	if !ok {
		return sentinel.ErrNotFound
	}
	vc, ok := inner[vcID]
	if !ok {
		return sentinel.ErrNotFound
	}
	vc.Revoked = revoked
	inner[vcID] = vc
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, did id.DID, vcID id.VCID) (*models.VerifiableCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vc, ok := s.vcs[did][vcID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := vc.Clone()
	return &out, nil
}

func (s *InMemoryStore) ListByDID(_ context.Context, did id.DID) ([]models.StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inner := s.vcs[did]
	out := make([]models.StoredCredential, 0, len(inner))
	for vcID, vc := range inner {
		out = append(out, models.StoredCredential{DID: did, VCID: vcID, Credential: vc.Clone()})
	}
	slices.SortFunc(out, func(a, b models.StoredCredential) int {
		return a.VCID.Compare(b.VCID)
	})
	return out, nil
}

func (s *InMemoryStore) ListDIDs(_ context.Context) ([]id.DID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.DID, 0, len(s.vcs))
	for did, inner := range s.vcs {
		if len(inner) > 0 {
			out = append(out, did)
		}
	}
	slices.SortFunc(out, func(a, b id.DID) int {
		return strings.Compare(string(a), string(b))
	})
	return out, nil
}

// InMemoryStateStore keeps the contract state for a single process.
type InMemoryStateStore struct {
	mu    sync.RWMutex
	state *models.ContractState
}

func NewInMemoryState() *InMemoryStateStore {
	return &InMemoryStateStore{}
}

func (s *InMemoryStateStore) Initialize(_ context.Context, owner id.Address, variant models.Variant, at time.Time) (*models.ContractState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		out := *s.state
		return &out, false, nil
	}
	s.state = &models.ContractState{Owner: owner, Variant: variant, CreatedAt: at}
	out := *s.state
	return &out, true, nil
}

func (s *InMemoryStateStore) Load(_ context.Context) (*models.ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *s.state
	return &out, nil
}

func (s *InMemoryStateStore) SetAuthority(_ context.Context, authority id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return sentinel.ErrNotFound
	}
	s.state.Authority = authority
	return nil
}

var (
	_ CredentialStore = (*InMemoryStore)(nil)
	_ StateStore      = (*InMemoryStateStore)(nil)
)
