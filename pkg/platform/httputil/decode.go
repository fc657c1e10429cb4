package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/requestcontext"
)

// DecodeJSON reads exactly one JSON object from the body into T. Unknown
// fields and trailing data are rejected, and a body cut off by
// http.MaxBytesReader is answered with 413. On failure the response has
// been written and ok is false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&req)
	if err == nil {
		err = expectEOF(dec)
	}
	if err == nil {
		return &req, true
	}

	logger.WarnContext(ctx, "rejected request body",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WritePayloadTooLarge(w, tooLarge.Limit)
		return nil, false
	}
	WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
	return nil, false
}

var errTrailingData = errors.New("unexpected data after JSON object")

func expectEOF(dec *json.Decoder) error {
	err := dec.Decode(&struct{}{})
	var tooLarge *http.MaxBytesError
	switch {
	case err == io.EOF:
		return nil
	case errors.As(err, &tooLarge):
		return err
	default:
		return errTrailingData
	}
}

// WritePayloadTooLarge answers 413 in the same shape as WriteError.
func WritePayloadTooLarge(w http.ResponseWriter, limit int64) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
		"error":             "payload_too_large",
		"error_description": fmt.Sprintf("request body exceeds %d bytes", limit),
	})
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes then validates a request.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare combines JSON decoding with request preparation.
//
//	req, ok := httputil.DecodeAndPrepare[UploadCredentialRequest](w, r, h.logger, ctx)
//	if !ok {
//	    return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx)
	if !ok {
		return nil, false
	}

	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		}
		return nil, false
	}

	return req, true
}
