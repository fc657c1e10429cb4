// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/uint128"

	dErrors "vcregistry/pkg/domain-errors"
)

// DID identifies a credential subject or issuer. Compared by exact string
// equality; no normalization is applied.
type DID string

// RequestID identifies one outstanding authorization request.
type RequestID uuid.UUID

// VCID identifies a credential within the scope of a single DID.
type VCID struct {
	v uint128.Uint128
}

// AddressLength is the byte length of an account address.
const AddressLength = 20

// Address identifies an account: the contract owner, a caller or an authority.
// The zero value is the "not configured" placeholder.
type Address [AddressLength]byte

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "DID cannot be empty")
	}
	return DID(s), nil
}

func ParseRequestID(s string) (RequestID, error) {
	if s == "" {
		return RequestID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "request ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return RequestID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid request ID format")
	}
	return RequestID(id), nil
}

// ParseVCID accepts the base-10 textual form only.
func ParseVCID(s string) (VCID, error) {
	if s == "" {
		return VCID{}, dErrors.New(dErrors.CodeInvalidInput, "VC ID cannot be empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return VCID{}, dErrors.New(dErrors.CodeInvalidInput, "VC ID must be a base-10 unsigned integer")
		}
	}
	v, err := uint128.FromString(s)
	if err != nil {
		return VCID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "VC ID out of range")
	}
	return VCID{v: v}, nil
}

// ParseAddress accepts 40 hex characters with an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != AddressLength*2 {
		return a, dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes of hex")
	}
	if _, err := hex.Decode(a[:], []byte(raw)); err != nil {
		return a, dErrors.New(dErrors.CodeInvalidInput, "address is not valid hex")
	}
	return a, nil
}

func NewRequestID() RequestID { return RequestID(uuid.New()) }

func VCIDFromUint64(n uint64) VCID { return VCID{v: uint128.From64(n)} }

// String methods - for logging and debugging.

func (d DID) String() string       { return string(d) }
func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id VCID) String() string      { return id.v.String() }
func (a Address) String() string    { return "0x" + hex.EncodeToString(a[:]) }

// IsNil checks - used for service-layer validation.

func (d DID) IsNil() bool       { return d == "" }
func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (a Address) IsZero() bool   { return a == Address{} }

// Compare orders VC ids numerically.
func (id VCID) Compare(other VCID) int { return id.v.Cmp(other.v) }

func (id VCID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *VCID) UnmarshalText(b []byte) error {
	parsed, err := ParseVCID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (id RequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *RequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
