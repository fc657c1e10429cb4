package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"vcregistry/internal/authority"
	"vcregistry/internal/registry/models"
)

// Resumer is the registry's resumption entry point.
type Resumer interface {
	Resume(ctx context.Context, r models.Resumption) (*models.Outcome, error)
}

// Local answers requests with an in-process Authority. The verdict is
// delivered on a separate goroutine after Dispatch returns, because the
// caller of Dispatch still holds the registry lock.
type Local struct {
	authority *authority.Authority
	logger    *slog.Logger

	mu      sync.RWMutex
	resumer Resumer
	wg      sync.WaitGroup
}

func NewLocal(a *authority.Authority, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{authority: a, logger: logger}
}

// Bind sets the resumption target. The service and its dispatcher refer to
// each other, so the link is made after both exist.
func (d *Local) Bind(r Resumer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumer = r
}

func (d *Local) Dispatch(ctx context.Context, req *models.PendingRequest) error {
	d.mu.RLock()
	resumer := d.resumer
	d.mu.RUnlock()
	if resumer == nil {
		return errors.New("local authority is not bound to a registry")
	}

	verdict := models.Resumption{
		RequestID: req.ID,
		Success:   d.authority.Decide(req.Authority, req.DID, req.Caller),
	}
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		outcome, err := resumer.Resume(ctx, verdict)
		if err != nil {
			d.logger.InfoContext(ctx, "local authorization resolved with error",
				"request_id", req.ID.String(),
				"success", verdict.Success,
				"error", err,
			)
			return
		}
		d.logger.DebugContext(ctx, "local authorization resolved",
			"request_id", req.ID.String(),
			"status", string(outcome.Status),
		)
	}()
	return nil
}

// Wait blocks until every verdict issued so far has been delivered.
func (d *Local) Wait() {
	d.wg.Wait()
}
