package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	contract "vcregistry/contracts/authority"
	"vcregistry/internal/platform/kafka/consumer"
	"vcregistry/internal/platform/kafka/producer"
)

// Producer publishes one message synchronously.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Responder consumes authorization requests and publishes verdicts.
type Responder struct {
	authority    *Authority
	producer     Producer
	verdictTopic string
	logger       *slog.Logger
}

func NewResponder(a *Authority, p Producer, verdictTopic string, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{authority: a, producer: p, verdictTopic: verdictTopic, logger: logger}
}

// Handle answers one request message. Malformed messages are logged and
// skipped; a failed publish is returned so the consumer retries.
func (r *Responder) Handle(ctx context.Context, msg *consumer.Message) error {
	req, err := contract.DecodeRequest(msg.Value)
	if err != nil {
		r.logger.WarnContext(ctx, "skipping malformed authorization request",
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	verdict := r.authority.Answer(req)
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if err := r.producer.Produce(ctx, &producer.Message{
		Topic: r.verdictTopic,
		Key:   []byte(req.RequestID),
		Value: payload,
		Headers: map[string]string{
			"aggregate_type": contract.AggregateType,
			"event_type":     contract.EventTypeVerdict,
		},
	}); err != nil {
		return fmt.Errorf("publish verdict for %s: %w", req.RequestID, err)
	}

	r.logger.InfoContext(ctx, "authorization verdict published",
		"request_id", req.RequestID,
		"did", req.DID,
		"caller", req.Caller,
		"success", verdict.Success,
	)
	return nil
}

var _ consumer.Handler = (*Responder)(nil)
