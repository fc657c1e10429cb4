package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vcregistry/pkg/domain-errors"
)

type sample struct {
	IssuerDID string `json:"issuer_did" validate:"required,nonul"`
	VCID      string `json:"vc_id" validate:"required,vcid"`
	Authority string `json:"authority" validate:"omitempty,address"`
}

func TestValidate(t *testing.T) {
	t.Run("accepts a well-formed request", func(t *testing.T) {
		err := Validate(sample{IssuerDID: "did:x:1", VCID: "7", Authority: "0x00000000000000000000000000000000000000a1"})
		require.NoError(t, err)
	})

	t.Run("reports the first failing field by its JSON name", func(t *testing.T) {
		err := Validate(sample{IssuerDID: "did:x:\x00", VCID: "7"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, "issuer_did must not contain NUL characters", err.Error())
	})

	t.Run("whitespace DIDs are opaque values, not blanks", func(t *testing.T) {
		require.NoError(t, Validate(sample{IssuerDID: "   ", VCID: "7"}))
	})

	t.Run("rejects malformed ids", func(t *testing.T) {
		err := Validate(sample{IssuerDID: "did:x:1", VCID: "-1"})
		assert.Equal(t, "vc_id must be a base-10 unsigned 128-bit integer", err.Error())

		err = Validate(sample{IssuerDID: "did:x:1", VCID: "1", Authority: "0x12"})
		assert.Equal(t, "authority must be a 20-byte hex address", err.Error())
	})
}

func TestCheckNoNUL(t *testing.T) {
	assert.NoError(t, CheckNoNUL("description", "plain text"))
	assert.NoError(t, CheckNoNUL("description", ""))

	err := CheckNoNUL("description", "a\x00b")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "description must not contain NUL characters", err.Error())
}

func TestLimits(t *testing.T) {
	assert.NoError(t, CheckSliceCount("subject_info", 2, MaxSubjectAttributes))
	assert.True(t, dErrors.HasCode(CheckSliceCount("subject_info", MaxSubjectAttributes+1, MaxSubjectAttributes), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(CheckStringLength("description", string(make([]byte, 5)), 4), dErrors.CodeValidation))
}

type attribute struct {
	Name string `json:"name" validate:"required,max=8"`
}

type nested struct {
	Attributes []attribute `json:"subject_info" validate:"max=2,dive"`
}

func TestNestedFieldPaths(t *testing.T) {
	err := Validate(nested{Attributes: []attribute{{Name: "degree"}, {}}})
	assert.Equal(t, "subject_info[1].name is required", err.Error())

	err = Validate(nested{Attributes: []attribute{{Name: "a"}, {Name: "b"}, {Name: "c"}}})
	assert.Equal(t, "subject_info must have at most 2 entries", err.Error())

	err = Validate(nested{Attributes: []attribute{{Name: "much-too-long"}}})
	assert.Equal(t, "subject_info[0].name must be at most 8 characters", err.Error())
}
