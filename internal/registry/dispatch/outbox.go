// Package dispatch delivers authorization requests to the Authority.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	contract "vcregistry/contracts/authority"
	"vcregistry/internal/registry/models"
	"vcregistry/pkg/platform/outbox"
)

// Appender is the write side of the outbox.
type Appender interface {
	Append(ctx context.Context, entry *outbox.Entry) error
}

// Outbox writes each request to the transactional outbox; the outbox
// worker publishes it to the request topic keyed by request id.
type Outbox struct {
	store Appender
	topic string
}

func NewOutbox(store Appender, topic string) *Outbox {
	return &Outbox{store: store, topic: topic}
}

func (d *Outbox) Dispatch(ctx context.Context, req *models.PendingRequest) error {
	payload, err := json.Marshal(ToContract(req))
	if err != nil {
		return fmt.Errorf("encode authorization request: %w", err)
	}
	entry := outbox.NewEntry(
		d.topic,
		contract.AggregateType,
		req.ID.String(),
		contract.EventTypeRequested,
		payload,
		req.CreatedAt,
	)
	if err := d.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append authorization request %s: %w", req.ID, err)
	}
	return nil
}

// ToContract converts a pending request into its wire form.
func ToContract(req *models.PendingRequest) contract.Request {
	return contract.Request{
		RequestID:   req.ID.String(),
		Authority:   req.Authority.String(),
		DID:         req.DID.String(),
		Caller:      req.Caller.String(),
		Operation:   string(req.Kind),
		RequestedAt: req.CreatedAt,
	}
}
