package testutil

import (
	"fmt"

	"vcregistry/internal/registry/models"
	id "vcregistry/pkg/domain"
)

// TestAddresses provides fixed accounts for tests.
var TestAddresses = struct {
	Owner      id.Address
	Caller     id.Address
	Stranger   id.Address
	AuthorityA id.Address
	AuthorityB id.Address
}{
	Owner:      MustAddress("0x00000000000000000000000000000000000000a1"),
	Caller:     MustAddress("0x00000000000000000000000000000000000000c1"),
	Stranger:   MustAddress("0x00000000000000000000000000000000000000e1"),
	AuthorityA: MustAddress("0x00000000000000000000000000000000000000f1"),
	AuthorityB: MustAddress("0x00000000000000000000000000000000000000f2"),
}

// MustAddress parses an address or panics. Test fixtures only.
func MustAddress(s string) id.Address {
	a, err := id.ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad address %q: %v", s, err))
	}
	return a
}

// MustVCID parses a decimal VC id or panics. Test fixtures only.
func MustVCID(s string) id.VCID {
	v, err := id.ParseVCID(s)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad vc id %q: %v", s, err))
	}
	return v
}

// CredentialBuilder provides a fluent interface for building test credentials.
type CredentialBuilder struct {
	vc models.VerifiableCredential
}

// NewCredentialBuilder creates a structured credential with sensible defaults.
func NewCredentialBuilder() *CredentialBuilder {
	return &CredentialBuilder{
		vc: models.VerifiableCredential{
			ValidSince:  "2024-01-01T00:00:00Z",
			ValidUntil:  "2025-01-01T00:00:00Z",
			SubjectDID:  "did:x:subject",
			SubjectInfo: []models.SubjectAttribute{{Name: "degree", Value: "BSc"}},
			Description: "test",
		},
	}
}

func (b *CredentialBuilder) WithValidity(since, until string) *CredentialBuilder {
	b.vc.ValidSince = since
	b.vc.ValidUntil = until
	return b
}

func (b *CredentialBuilder) WithSubject(did id.DID) *CredentialBuilder {
	b.vc.SubjectDID = did
	return b
}

func (b *CredentialBuilder) WithAttribute(name, value string) *CredentialBuilder {
	b.vc.SubjectInfo = append(b.vc.SubjectInfo, models.SubjectAttribute{Name: name, Value: value})
	return b
}

func (b *CredentialBuilder) WithoutAttributes() *CredentialBuilder {
	b.vc.SubjectInfo = nil
	return b
}

func (b *CredentialBuilder) WithDescription(description string) *CredentialBuilder {
	b.vc.Description = description
	return b
}

// Opaque switches to the single-content form and clears structured fields.
func (b *CredentialBuilder) Opaque(content string) *CredentialBuilder {
	b.vc.SubjectDID = ""
	b.vc.SubjectInfo = nil
	b.vc.Description = ""
	b.vc.Content = content
	return b
}

func (b *CredentialBuilder) Revoked() *CredentialBuilder {
	b.vc.Revoked = true
	return b
}

func (b *CredentialBuilder) Build() models.VerifiableCredential {
	return b.vc.Clone()
}
