package models

import (
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
)

// Operation names the deferred workflow a continuation completes.
type Operation string

const (
	OperationUploadCredential    Operation = "upload_credential"
	OperationSetRevocationStatus Operation = "set_revocation_status"
)

// Continuation is the tagged payload carried across the authorization
// boundary. It holds everything the commit step needs and is handed back
// verbatim on resumption.
type Continuation struct {
	Kind      Operation `json:"kind"`
	IssuerDID id.DID    `json:"issuer_did"`
	VCID      id.VCID   `json:"vc_id"`

	// Credential is set for OperationUploadCredential.
	Credential *VerifiableCredential `json:"credential,omitempty"`
	// Revoked is the desired flag for OperationSetRevocationStatus.
	Revoked bool `json:"revoked,omitempty"`
}

// NewUploadContinuation captures a candidate credential verbatim.
func NewUploadContinuation(did id.DID, vcID id.VCID, vc VerifiableCredential) Continuation {
	candidate := vc.Clone()
	return Continuation{
		Kind:       OperationUploadCredential,
		IssuerDID:  did,
		VCID:       vcID,
		Credential: &candidate,
	}
}

func NewRevocationContinuation(did id.DID, vcID id.VCID, revoked bool) Continuation {
	return Continuation{
		Kind:      OperationSetRevocationStatus,
		IssuerDID: did,
		VCID:      vcID,
		Revoked:   revoked,
	}
}

// Validate rejects payloads that could not have been produced by an entry point.
func (c Continuation) Validate() error {
	if c.IssuerDID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "continuation has no issuer DID")
	}
	switch c.Kind {
	case OperationUploadCredential:
		if c.Credential == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "upload continuation has no credential")
		}
	case OperationSetRevocationStatus:
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown continuation kind: "+string(c.Kind))
	}
	return nil
}
