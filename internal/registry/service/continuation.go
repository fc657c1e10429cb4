package service

import (
	"context"
	"errors"
	"fmt"

	"vcregistry/internal/platform/tracer"
	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/audit"
	"vcregistry/pkg/requestcontext"
	"vcregistry/pkg/validation"
)

// UploadCommand carries a candidate credential. Authority is read only in
// the per-call variant.
type UploadCommand struct {
	IssuerDID  id.DID
	VCID       id.VCID
	Credential models.VerifiableCredential
	Authority  id.Address
}

// RevocationCommand carries the desired revocation flag. Authority is read
// only in the per-call variant.
type RevocationCommand struct {
	IssuerDID id.DID
	VCID      id.VCID
	Revoked   bool
	Authority id.Address
}

// UploadCredential requests authorization to store a new credential. The
// store is not touched; the credential is inserted when the request resumes
// with success and the VC id is still free under the DID at that moment.
func (s *Service) UploadCredential(ctx context.Context, caller id.Address, cmd UploadCommand) (*models.PendingRequest, error) {
	if err := validateCandidate(cmd.Credential); err != nil {
		return nil, err
	}
	return s.request(ctx, caller, cmd.IssuerDID, cmd.Authority,
		models.NewUploadContinuation(cmd.IssuerDID, cmd.VCID, cmd.Credential))
}

// SetRevocationStatus requests authorization to set the revocation flag of
// an existing credential. Existence is checked when the request resumes.
func (s *Service) SetRevocationStatus(ctx context.Context, caller id.Address, cmd RevocationCommand) (*models.PendingRequest, error) {
	return s.request(ctx, caller, cmd.IssuerDID, cmd.Authority,
		models.NewRevocationContinuation(cmd.IssuerDID, cmd.VCID, cmd.Revoked))
}

func (s *Service) request(ctx context.Context, caller id.Address, did id.DID, perCallAuthority id.Address, c models.Continuation) (*models.PendingRequest, error) {
	if did.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer DID is required")
	}
	if err := validation.CheckNoNUL("issuer DID", did.String()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	authority := st.Authority
	if st.Variant == models.VariantPerCall {
		authority = perCallAuthority
	}
	if authority.IsZero() {
		return nil, dErrors.New(dErrors.CodeAuthorityNotConfigured, "authority address is not configured")
	}
	return s.gate.Request(ctx, authority, did, caller, c)
}

// validateCandidate rejects what no store could commit and checks presence:
// the opaque form carries Content and nothing else, the structured form
// leaves Content empty.
func validateCandidate(vc models.VerifiableCredential) error {
	type field struct{ name, value string }
	fields := []field{
		{"valid since", vc.ValidSince},
		{"valid until", vc.ValidUntil},
		{"subject DID", vc.SubjectDID.String()},
		{"description", vc.Description},
		{"content", vc.Content},
	}
	for _, a := range vc.SubjectInfo {
		fields = append(fields, field{"subject attribute name", a.Name}, field{"subject attribute value", a.Value})
	}
	for _, f := range fields {
		if err := validation.CheckNoNUL(f.name, f.value); err != nil {
			return err
		}
	}
	if !vc.IsOpaque() {
		return nil
	}
	if vc.SubjectDID != "" || vc.Description != "" || len(vc.SubjectInfo) > 0 {
		return dErrors.New(dErrors.CodeValidation, "content cannot be combined with structured credential fields")
	}
	return nil
}

// Resume delivers the Authority's verdict for one request. On success the
// continuation is re-validated against current state and committed. The
// returned outcome is set whenever a continuation was resolved, including
// when err reports a denial or a rejected commit.
func (s *Service) Resume(ctx context.Context, r models.Resumption) (_ *models.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, tracer.SpanResume,
		tracer.String(tracer.AttrRequestID, r.RequestID.String()),
		tracer.Bool(tracer.AttrVerdict, r.Success),
	)
	defer func() { span.End(err) }()

	req, err := s.gate.Resume(ctx, r)
	if req == nil {
		return nil, err
	}
	span.AddEvent(tracer.EventContinuationTaken,
		tracer.String(tracer.AttrOperation, string(req.Kind)),
		tracer.String(tracer.AttrDID, req.DID.String()),
	)

	if err == nil {
		err = s.commit(ctx, req)
	}

	outcome := models.NewOutcome(req, err, requestcontext.Now(ctx).UTC())
	span.SetAttributes(tracer.String(tracer.AttrOutcome, string(outcome.Status)))
	s.gate.Record(ctx, req, outcome)
	s.auditOutcome(ctx, req, outcome)

	if err != nil {
		s.logger.InfoContext(ctx, "authorization request resolved without commit",
			"request_id", req.ID.String(),
			"operation", string(req.Kind),
			"did", req.DID.String(),
			"vc_id", req.Continuation.VCID.String(),
			"status", string(outcome.Status),
			"error", err,
		)
		return &outcome, err
	}
	s.logger.InfoContext(ctx, "authorization request committed",
		"request_id", req.ID.String(),
		"operation", string(req.Kind),
		"did", req.DID.String(),
		"vc_id", req.Continuation.VCID.String(),
	)
	return &outcome, nil
}

// commit applies a continuation whose request was granted. The payload is
// checked against the request it travelled with before the store is touched.
func (s *Service) commit(ctx context.Context, req *models.PendingRequest) (err error) {
	c := req.Continuation
	ctx, span := s.tracer.Start(ctx, tracer.SpanCommit,
		tracer.String(tracer.AttrOperation, string(c.Kind)),
		tracer.String(tracer.AttrDID, c.IssuerDID.String()),
		tracer.String(tracer.AttrVCID, c.VCID.String()),
	)
	defer func() { span.End(err) }()

	if err := c.Validate(); err != nil {
		return err
	}
	if c.Kind != req.Kind || c.IssuerDID != req.DID {
		return dErrors.New(dErrors.CodeInvariantViolation, "continuation does not match its authorization request")
	}

	switch c.Kind {
	case models.OperationUploadCredential:
		err := s.credentials.Insert(ctx, c.IssuerDID, c.VCID, c.Credential.Clone())
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("credential %s already exists for %s", c.VCID, c.IssuerDID))
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
		}
	case models.OperationSetRevocationStatus:
		err := s.credentials.SetRevoked(ctx, c.IssuerDID, c.VCID, c.Revoked)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("credential %s not found for %s", c.VCID, c.IssuerDID))
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update revocation status")
		}
	}
	return nil
}

func (s *Service) auditOutcome(ctx context.Context, req *models.PendingRequest, outcome models.Outcome) {
	event := audit.Event{
		Timestamp: outcome.ResolvedAt,
		DID:       req.DID,
		VCID:      req.Continuation.VCID.String(),
		Caller:    req.Caller.String(),
		Authority: req.Authority.String(),
		Outcome:   string(outcome.Status),
		Reason:    outcome.Reason,
		RequestID: req.ID.String(),
	}
	switch {
	case outcome.Status == models.OutcomeDenied:
		event.Action = string(audit.EventAuthorizationDenied)
	case outcome.Status == models.OutcomeRejected:
		event.Action = string(audit.EventCommitRejected)
	case req.Kind == models.OperationUploadCredential:
		event.Action = string(audit.EventCredentialUploaded)
	default:
		event.Action = string(audit.EventRevocationSet)
	}
	s.auditor.Record(ctx, event)
}
