// Package consumer feeds Authority verdicts from Kafka into the registry.
package consumer

import (
	"context"
	"log/slog"

	contract "vcregistry/contracts/authority"
	kafkaconsumer "vcregistry/internal/platform/kafka/consumer"
	"vcregistry/internal/registry/models"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
)

// Resumer is the registry's resumption entry point.
type Resumer interface {
	Resume(ctx context.Context, r models.Resumption) (*models.Outcome, error)
}

// VerdictHandler resumes one request per verdict message. Only
// infrastructure failures are returned, so the consumer retries those and
// commits everything else: a denied or rejected request is a final outcome,
// and an unknown or already-resumed id will never become resumable.
type VerdictHandler struct {
	registry Resumer
	logger   *slog.Logger
}

func NewVerdictHandler(registry Resumer, logger *slog.Logger) *VerdictHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerdictHandler{registry: registry, logger: logger}
}

func (h *VerdictHandler) Handle(ctx context.Context, msg *kafkaconsumer.Message) error {
	verdict, err := contract.DecodeVerdict(msg.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "skipping malformed verdict",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	requestID, err := id.ParseRequestID(verdict.RequestID)
	if err != nil {
		h.logger.WarnContext(ctx, "skipping verdict with invalid request id",
			"request_id", verdict.RequestID,
			"offset", msg.Offset,
		)
		return nil
	}

	outcome, err := h.registry.Resume(ctx, models.Resumption{RequestID: requestID, Success: verdict.Success})
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "verdict applied",
			"request_id", requestID.String(),
			"status", string(outcome.Status),
		)
		return nil
	case outcome != nil:
		// The continuation was resolved; the error is its recorded outcome.
		return nil
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		h.logger.InfoContext(ctx, "verdict for unknown or resolved request ignored",
			"request_id", requestID.String(),
		)
		return nil
	default:
		return err
	}
}

var _ kafkaconsumer.Handler = (*VerdictHandler)(nil)
