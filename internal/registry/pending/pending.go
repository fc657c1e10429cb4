// Package pending stores continuations while their authorization request is
// outstanding and records how each request was resolved.
package pending

import (
	"context"

	"vcregistry/internal/registry/models"
	id "vcregistry/pkg/domain"
)

// Store is the runtime storage that carries a continuation across the
// suspension between an authorization request and its resumption.
//
// A request moves pending -> resolving -> resolved. Take performs the first
// step and RecordOutcome the second, so Lookup finds every issued request in
// exactly one state.
//
// Error Contract:
// - Put returns sentinel.ErrAlreadyExists when the request id is in use
// - Take and Withdraw return sentinel.ErrNotFound for unknown or already-taken ids
// - Lookup returns sentinel.ErrNotFound when the id is in none of the three states
type Store interface {
	Put(ctx context.Context, req *models.PendingRequest) error
	// Take moves the pending request to resolving and returns it atomically.
	// Concurrent callers racing on one id see exactly one success.
	Take(ctx context.Context, requestID id.RequestID) (*models.PendingRequest, error)
	// Withdraw drops a pending request that was never dispatched.
	Withdraw(ctx context.Context, requestID id.RequestID) error
	RecordOutcome(ctx context.Context, outcome models.Outcome) error
	Lookup(ctx context.Context, requestID id.RequestID) (*models.RequestStatus, error)
}
