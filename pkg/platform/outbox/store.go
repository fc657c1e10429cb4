package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists entries between the registry writing an authorization
// request and the worker relaying it. Implementations are safe for
// concurrent use by several workers.
type Store interface {
	Append(ctx context.Context, entry *Entry) error

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	// The Postgres store claims what it returns, so concurrent callers get
	// disjoint batches.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore prunes relayed entries and reports how many went.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
