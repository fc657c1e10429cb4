// Package models holds the registry's domain types: credentials, contract
// state, continuations carried across the authorization boundary, and the
// outcomes recorded when a continuation resolves.
package models

import (
	"time"

	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
)

// Variant selects how the Authority address is obtained.
type Variant string

const (
	// VariantGated uses one Authority address configured by the owner.
	VariantGated Variant = "gated"
	// VariantPerCall takes the Authority address on every gated call.
	VariantPerCall Variant = "per_call"
)

func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantGated, VariantPerCall:
		return Variant(s), nil
	case "":
		return VariantGated, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "variant must be gated or per_call")
	}
}

// SubjectAttribute is a name/value pair attached to a credential.
// Order is insertion order.
type SubjectAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// VerifiableCredential is the unit of stored data. Either the structured
// fields plus Description are set, or Content carries the credential as one
// opaque string. Both forms share the same lifecycle.
type VerifiableCredential struct {
	ValidSince  string             `json:"valid_since"`
	ValidUntil  string             `json:"valid_until"`
	SubjectDID  id.DID             `json:"subject_did,omitempty"`
	SubjectInfo []SubjectAttribute `json:"subject_info"`
	Description string             `json:"description,omitempty"`
	Content     string             `json:"content,omitempty"`
	Revoked     bool               `json:"revoked"`
}

// Clone returns a deep copy so stored records never alias caller memory.
func (vc VerifiableCredential) Clone() VerifiableCredential {
	out := vc
	if vc.SubjectInfo != nil {
		out.SubjectInfo = make([]SubjectAttribute, len(vc.SubjectInfo))
		copy(out.SubjectInfo, vc.SubjectInfo)
	}
	return out
}

// IsOpaque reports whether the credential uses the single-content form.
func (vc VerifiableCredential) IsOpaque() bool {
	return vc.Content != ""
}

// StoredCredential is a credential together with its key.
type StoredCredential struct {
	DID        id.DID
	VCID       id.VCID
	Credential VerifiableCredential
}

// ContractState is the registry singleton. Owner never changes after creation.
type ContractState struct {
	Owner     id.Address
	Authority id.Address
	Variant   Variant
	CreatedAt time.Time
}

// AuthorityConfigured reports whether gated operations may start.
func (s ContractState) AuthorityConfigured() bool {
	return !s.Authority.IsZero()
}
