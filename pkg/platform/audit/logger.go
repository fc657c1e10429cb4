package audit

import (
	"context"
	"log/slog"

	"vcregistry/pkg/requestcontext"
)

// Logger writes an audit line to the structured log and emits the event to
// the audit store when an emitter is configured.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewLogger creates an audit logger. The emitter is optional.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{
		textLogger: textLogger,
		emitter:    emitter,
	}
}

// Record logs the event and emits it. Emission failures are logged, never
// returned: a committed registry change must not be reported as failed
// because its audit trail could not be written.
func (l *Logger) Record(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if l.textLogger != nil {
		l.textLogger.InfoContext(ctx, event.Action,
			"log_type", "audit",
			"event", event.Action,
			"did", string(event.DID),
			"vc_id", event.VCID,
			"caller", event.Caller,
			"authority", event.Authority,
			"outcome", event.Outcome,
			"reason", event.Reason,
			"request_id", event.RequestID,
		)
	}

	if l.emitter == nil {
		return
	}
	if err := l.emitter.Emit(ctx, event); err != nil && l.textLogger != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", event.Action,
		)
	}
}
