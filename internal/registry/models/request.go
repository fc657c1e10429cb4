package models

import (
	"time"

	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
)

// PendingRequest is one outstanding authorization request and its continuation.
type PendingRequest struct {
	ID           id.RequestID `json:"id"`
	Kind         Operation    `json:"kind"`
	Authority    id.Address   `json:"authority"`
	DID          id.DID       `json:"did"`
	Caller       id.Address   `json:"caller"`
	Continuation Continuation `json:"continuation"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Resumption is the Authority's verdict delivered back to the registry.
type Resumption struct {
	RequestID id.RequestID
	Success   bool
}

// OutcomeStatus is how a resumed request ended.
type OutcomeStatus string

const (
	// OutcomeCommitted means the continuation was applied to the store.
	OutcomeCommitted OutcomeStatus = "committed"
	// OutcomeDenied means the Authority resumed with failure.
	OutcomeDenied OutcomeStatus = "denied"
	// OutcomeRejected means the commit step failed its invariant check.
	OutcomeRejected OutcomeStatus = "rejected"
)

// Outcome records the resolution of a request.
type Outcome struct {
	RequestID  id.RequestID  `json:"request_id"`
	Kind       Operation     `json:"kind"`
	DID        id.DID        `json:"did"`
	VCID       id.VCID       `json:"vc_id"`
	Status     OutcomeStatus `json:"status"`
	Code       dErrors.Code  `json:"code,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	ResolvedAt time.Time     `json:"resolved_at"`
}

// RequestStatus is the read model behind request status queries.
// Exactly one of Pending or Outcome is set. Resolving marks a pending
// request whose verdict has arrived and whose outcome is not yet recorded.
type RequestStatus struct {
	Pending   *PendingRequest
	Outcome   *Outcome
	Resolving bool
}

// NewOutcome derives the outcome of a resumption from the error it produced.
func NewOutcome(req *PendingRequest, err error, at time.Time) Outcome {
	o := Outcome{
		RequestID:  req.ID,
		Kind:       req.Kind,
		DID:        req.DID,
		VCID:       req.Continuation.VCID,
		Status:     OutcomeCommitted,
		ResolvedAt: at,
	}
	if err == nil {
		return o
	}
	o.Code = dErrors.CodeOf(err)
	o.Reason = err.Error()
	if o.Code == dErrors.CodeAuthorizationDenied {
		o.Status = OutcomeDenied
	} else {
		o.Status = OutcomeRejected
	}
	return o
}
