package validation

import (
	dErrors "vcregistry/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024
)

// Credential field limits
const (
	MaxDIDLength         = 512
	MaxSubjectAttributes = 64
	MaxAttributeLength   = 1024
	MaxDescriptionLength = 4096
	MaxContentLength     = 32 * 1024
	MaxValidityLength    = 64
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.Newf(dErrors.CodeValidation, "too many %s: max %d allowed", fieldName, max)
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.Newf(dErrors.CodeValidation, "%s exceeds max length of %d", fieldName, max)
	}
	return nil
}
