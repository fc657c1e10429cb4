package authority

import (
	"encoding/json"
	"fmt"
	"time"
)

// Package authority hosts the wire messages exchanged with the external
// Authority that decides whether a caller may act on a DID. Keep these
// versioned independently from the registry's internal models.

// ContractVersion identifies the contract schema version for compatibility checks.
// Bump on breaking changes to the shapes below.
const ContractVersion = "v1.0.0"

// Operations the registry asks the Authority about.
const (
	OperationUploadCredential    = "upload_credential"
	OperationSetRevocationStatus = "set_revocation_status"
)

// Event metadata carried as Kafka headers.
const (
	AggregateType      = "authorization_request"
	EventTypeRequested = "authorization.requested"
	EventTypeVerdict   = "authorization.verdict"
)

// Request asks the Authority whether Caller may act on DID.
// Published to the request topic keyed by RequestID.
type Request struct {
	RequestID   string    `json:"request_id"`
	Authority   string    `json:"authority"`
	DID         string    `json:"did"`
	Caller      string    `json:"caller"`
	Operation   string    `json:"operation"`
	RequestedAt time.Time `json:"requested_at"`
}

// Verdict is the Authority's answer to one Request.
type Verdict struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
}

// DecodeRequest parses and minimally checks a request message.
func DecodeRequest(b []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, fmt.Errorf("decode authorization request: %w", err)
	}
	if r.RequestID == "" || r.DID == "" || r.Caller == "" {
		return Request{}, fmt.Errorf("authorization request is missing request_id, did or caller")
	}
	return r, nil
}

// DecodeVerdict parses a verdict message. A verdict without a request id is rejected.
func DecodeVerdict(b []byte) (Verdict, error) {
	var v Verdict
	if err := json.Unmarshal(b, &v); err != nil {
		return Verdict{}, fmt.Errorf("decode authorization verdict: %w", err)
	}
	if v.RequestID == "" {
		return Verdict{}, fmt.Errorf("authorization verdict is missing request_id")
	}
	return v, nil
}
