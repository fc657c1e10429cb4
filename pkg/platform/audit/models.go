package audit

import (
	"context"
	"time"

	id "vcregistry/pkg/domain"
)

// Event is emitted from registry logic to capture state transitions and
// rejected requests. Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    string
	DID       id.DID
	VCID      string // base-10, empty for authority configuration
	Caller    string
	Authority string
	Outcome   string
	Reason    string
	RequestID string // authorization request id or HTTP correlation id
}

type AuditEvent string

const (
	EventAuthorityConfigured AuditEvent = "authority_configured"
	EventCredentialUploaded  AuditEvent = "credential_uploaded"
	EventRevocationSet       AuditEvent = "revocation_set"
	EventAuthorizationDenied AuditEvent = "authorization_denied"
	EventCommitRejected      AuditEvent = "commit_rejected"
)

// Store persists audit events. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDID(ctx context.Context, did id.DID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is the interface for audit event emission.
// Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
