package store

import (
	"context"
	"time"

	"vcregistry/internal/registry/models"
	id "vcregistry/pkg/domain"
)

// Error Contract:
// - Insert returns sentinel.ErrAlreadyExists when the VC id is taken under the DID
// - SetRevoked and Find return sentinel.ErrNotFound when the DID or VC id is absent
// - StateStore.Load returns sentinel.ErrNotFound before Initialize
// - Infrastructure failures are returned wrapped with context

// CredentialStore owns the DID -> (VC id -> credential) mapping.
// Records are never deleted; only the revocation flag changes after insert.
type CredentialStore interface {
	Insert(ctx context.Context, did id.DID, vcID id.VCID, vc models.VerifiableCredential) error
	SetRevoked(ctx context.Context, did id.DID, vcID id.VCID, revoked bool) error

	Find(ctx context.Context, did id.DID, vcID id.VCID) (*models.VerifiableCredential, error)
	// ListByDID returns the credentials under did ordered by VC id.
	ListByDID(ctx context.Context, did id.DID) ([]models.StoredCredential, error)
	// ListDIDs returns every DID holding at least one credential, in lexicographic order.
	ListDIDs(ctx context.Context) ([]id.DID, error)
}

// StateStore persists the contract singleton.
type StateStore interface {
	// Initialize creates the state once. When state already exists it is
	// returned unchanged and created is false.
	Initialize(ctx context.Context, owner id.Address, variant models.Variant, at time.Time) (state *models.ContractState, created bool, err error)
	Load(ctx context.Context) (*models.ContractState, error)
	SetAuthority(ctx context.Context, authority id.Address) error
}
