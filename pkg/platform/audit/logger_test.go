package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcregistry/pkg/requestcontext"
)

type mockEmitter struct {
	events    []Event
	shouldErr bool
}

func (m *mockEmitter) Emit(_ context.Context, event Event) error {
	if m.shouldErr {
		return errors.New("emit failed")
	}
	m.events = append(m.events, event)
	return nil
}

// LoggerSuite tests the audit Logger.
//
// The logger fills in request correlation and time from context and must
// swallow emission failures after logging them.
type LoggerSuite struct {
	suite.Suite
	buf     *bytes.Buffer
	emitter *mockEmitter
	logger  *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.emitter = &mockEmitter{}
	s.logger = NewLogger(slog.New(slog.NewJSONHandler(s.buf, nil)), s.emitter)
}

func (s *LoggerSuite) TestRecordEnrichesFromContext() {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), fixed)

	s.logger.Record(ctx, Event{Action: string(EventCredentialUploaded), DID: "did:x:1", VCID: "7"})

	s.Require().Len(s.emitter.events, 1)
	s.Equal("req-1", s.emitter.events[0].RequestID)
	s.Equal(fixed, s.emitter.events[0].Timestamp)
	s.Contains(s.buf.String(), `"log_type":"audit"`)
	s.Contains(s.buf.String(), `"vc_id":"7"`)
}

func (s *LoggerSuite) TestRecordKeepsExplicitRequestID() {
	ctx := requestcontext.WithRequestID(context.Background(), "http-req")
	s.logger.Record(ctx, Event{Action: string(EventRevocationSet), RequestID: "authz-req"})

	s.Require().Len(s.emitter.events, 1)
	s.Equal("authz-req", s.emitter.events[0].RequestID)
}

func (s *LoggerSuite) TestEmitFailureIsLoggedNotReturned() {
	s.emitter.shouldErr = true
	s.logger.Record(context.Background(), Event{Action: string(EventAuthorizationDenied)})

	s.Contains(s.buf.String(), "failed to emit audit event")
}

func (s *LoggerSuite) TestNilLoggerIsNoop() {
	var l *Logger
	s.NotPanics(func() { l.Record(context.Background(), Event{Action: "x"}) })
}
