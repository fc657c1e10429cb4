package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry represents a pending message in the outbox table.
// The worker publishes each entry to Topic keyed by AggregateID.
type Entry struct {
	ID            uuid.UUID
	Topic         string
	AggregateType string     // e.g. "authorization_request"
	AggregateID   string     // e.g. the authorization request id
	EventType     string     // e.g. "upload_credential"
	Payload       []byte     // JSON-encoded message
	CreatedAt     time.Time  // When the entry was created
	ProcessedAt   *time.Time // nil = pending, non-nil = published
}

// IsPending returns true if this entry has not been processed yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates a new outbox entry with a generated UUID.
func NewEntry(topic, aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		Topic:         topic,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
