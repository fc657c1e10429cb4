package handler

import (
	"strings"
	"time"

	"vcregistry/internal/registry/models"
	id "vcregistry/pkg/domain"
	"vcregistry/pkg/platform/httputil"
	"vcregistry/pkg/validation"
)

// ConfigureAuthorityRequest sets the gated-variant authority address.
type ConfigureAuthorityRequest struct {
	Authority string `json:"authority" validate:"required,address"`
}

func (r *ConfigureAuthorityRequest) Normalize() {
	r.Authority = strings.TrimSpace(r.Authority)
}

func (r *ConfigureAuthorityRequest) Validate() error {
	return validation.Validate(r)
}

type SubjectAttribute struct {
	Name  string `json:"name" validate:"required,max=1024,nonul"`
	Value string `json:"value" validate:"max=1024,nonul"`
}

// UploadCredentialRequest is the body of POST /registry/credentials. Either
// the structured fields or content are set. Authority is only read by a
// per-call registry. DIDs are taken verbatim, surrounding whitespace
// included. No string field may carry NUL.
type UploadCredentialRequest struct {
	IssuerDID   string             `json:"issuer_did" validate:"required,max=512,nonul"`
	VCID        string             `json:"vc_id" validate:"required,vcid"`
	ValidSince  string             `json:"valid_since" validate:"max=64,nonul"`
	ValidUntil  string             `json:"valid_until" validate:"max=64,nonul"`
	SubjectDID  string             `json:"subject_did" validate:"max=512,nonul"`
	SubjectInfo []SubjectAttribute `json:"subject_info" validate:"max=64,dive"`
	Description string             `json:"description" validate:"max=4096,nonul"`
	Content     string             `json:"content" validate:"max=32768,nonul"`
	Revoked     bool               `json:"revoked"`
	Authority   string             `json:"authority,omitempty" validate:"omitempty,address"`
}

func (r *UploadCredentialRequest) Normalize() {
	r.VCID = strings.TrimSpace(r.VCID)
	r.Authority = strings.TrimSpace(r.Authority)
}

func (r *UploadCredentialRequest) Validate() error {
	return validation.Validate(r)
}

func (r *UploadCredentialRequest) credential() models.VerifiableCredential {
	vc := models.VerifiableCredential{
		ValidSince:  r.ValidSince,
		ValidUntil:  r.ValidUntil,
		SubjectDID:  id.DID(r.SubjectDID),
		Description: r.Description,
		Content:     r.Content,
		Revoked:     r.Revoked,
	}
	for _, a := range r.SubjectInfo {
		vc.SubjectInfo = append(vc.SubjectInfo, models.SubjectAttribute{Name: a.Name, Value: a.Value})
	}
	return vc
}

// SetRevocationRequest is the body of POST /registry/credentials/revocation.
type SetRevocationRequest struct {
	IssuerDID string `json:"issuer_did" validate:"required,max=512,nonul"`
	VCID      string `json:"vc_id" validate:"required,vcid"`
	Revoked   *bool  `json:"revoked" validate:"required"`
	Authority string `json:"authority,omitempty" validate:"omitempty,address"`
}

func (r *SetRevocationRequest) Normalize() {
	r.VCID = strings.TrimSpace(r.VCID)
	r.Authority = strings.TrimSpace(r.Authority)
}

func (r *SetRevocationRequest) Validate() error {
	return validation.Validate(r)
}

// VerdictRequest is the Authority's callback body.
type VerdictRequest struct {
	Success *bool `json:"success" validate:"required"`
}

func (r *VerdictRequest) Validate() error {
	return validation.Validate(r)
}

type StateResponse struct {
	Owner               string    `json:"owner"`
	Authority           string    `json:"authority"`
	AuthorityConfigured bool      `json:"authority_configured"`
	Variant             string    `json:"variant"`
	CreatedAt           time.Time `json:"created_at"`
}

func toStateResponse(st *models.ContractState) StateResponse {
	return StateResponse{
		Owner:               st.Owner.String(),
		Authority:           st.Authority.String(),
		AuthorityConfigured: st.AuthorityConfigured(),
		Variant:             string(st.Variant),
		CreatedAt:           st.CreatedAt,
	}
}

type CredentialResponse struct {
	DID         string             `json:"did"`
	VCID        string             `json:"vc_id"`
	ValidSince  string             `json:"valid_since,omitempty"`
	ValidUntil  string             `json:"valid_until,omitempty"`
	SubjectDID  string             `json:"subject_did,omitempty"`
	SubjectInfo []SubjectAttribute `json:"subject_info,omitempty"`
	Description string             `json:"description,omitempty"`
	Content     string             `json:"content,omitempty"`
	Revoked     bool               `json:"revoked"`
}

func toCredentialResponse(did id.DID, vcID id.VCID, vc *models.VerifiableCredential) CredentialResponse {
	out := CredentialResponse{
		DID:         did.String(),
		VCID:        vcID.String(),
		ValidSince:  vc.ValidSince,
		ValidUntil:  vc.ValidUntil,
		SubjectDID:  vc.SubjectDID.String(),
		Description: vc.Description,
		Content:     vc.Content,
		Revoked:     vc.Revoked,
	}
	for _, a := range vc.SubjectInfo {
		out.SubjectInfo = append(out.SubjectInfo, SubjectAttribute{Name: a.Name, Value: a.Value})
	}
	return out
}

type CredentialListResponse struct {
	DID         string               `json:"did"`
	Credentials []CredentialResponse `json:"credentials"`
}

type DIDListResponse struct {
	DIDs []string `json:"dids"`
}

// RequestResponse describes an authorization request, pending or resolved.
type RequestResponse struct {
	RequestID  string     `json:"request_id"`
	Operation  string     `json:"operation"`
	DID        string     `json:"did"`
	VCID       string     `json:"vc_id"`
	Status     string     `json:"status"`
	Caller     string     `json:"caller,omitempty"`
	Authority  string     `json:"authority,omitempty"`
	Code       string     `json:"code,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

const (
	statusPending   = "pending"
	statusResolving = "resolving"
)

func toPendingResponse(req *models.PendingRequest) RequestResponse {
	created := req.CreatedAt
	return RequestResponse{
		RequestID: req.ID.String(),
		Operation: string(req.Kind),
		DID:       req.DID.String(),
		VCID:      req.Continuation.VCID.String(),
		Status:    statusPending,
		Caller:    req.Caller.String(),
		Authority: req.Authority.String(),
		CreatedAt: &created,
	}
}

// toOutcomeResponse reports rejection codes in the same vocabulary as error
// bodies.
func toOutcomeResponse(o *models.Outcome) RequestResponse {
	resolved := o.ResolvedAt
	var code string
	if o.Code != "" {
		code = httputil.DomainCodeToHTTPCode(o.Code)
	}
	return RequestResponse{
		RequestID:  o.RequestID.String(),
		Operation:  string(o.Kind),
		DID:        o.DID.String(),
		VCID:       o.VCID.String(),
		Status:     string(o.Status),
		Code:       code,
		Reason:     o.Reason,
		ResolvedAt: &resolved,
	}
}

func toStatusResponse(status *models.RequestStatus) RequestResponse {
	if status.Outcome != nil {
		return toOutcomeResponse(status.Outcome)
	}
	resp := toPendingResponse(status.Pending)
	if status.Resolving {
		resp.Status = statusResolving
	}
	return resp
}
