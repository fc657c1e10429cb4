package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/requestcontext"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type revokeRequest struct {
	IssuerDID string `json:"issuer_did"`
	Revoked   bool   `json:"revoked"`
}

func (r *revokeRequest) Normalize() { r.IssuerDID = strings.TrimSpace(r.IssuerDID) }

func (r *revokeRequest) Validate() error {
	if r.IssuerDID == "" {
		return errors.New("issuer_did is required")
	}
	return nil
}

type domainValidated struct {
	Name string `json:"name"`
}

func (r *domainValidated) Validate() error {
	return dErrors.New(dErrors.CodeAuthorityNotConfigured, "no authority")
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"issuer_did":"  did:x:1 ","revoked":true}`))
		w := httptest.NewRecorder()

		req, ok := DecodeAndPrepare[revokeRequest](w, r, quietLogger, r.Context())
		require.True(t, ok)
		assert.Equal(t, "did:x:1", req.IssuerDID)
		assert.True(t, req.Revoked)
	})

	t.Run("plain validation errors become validation_error", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"issuer_did":"   "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[revokeRequest](w, r, quietLogger, r.Context())
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeBody(t, w)["error"])
	})

	t.Run("domain errors keep their code", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[domainValidated](w, r, quietLogger, r.Context())
		require.False(t, ok)
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	})

	t.Run("unknown fields, malformed JSON and trailing data are bad requests", func(t *testing.T) {
		for _, body := range []string{`{"issuer_did":"did:x:1","extra":1}`, `{`, `{"issuer_did":"did:x:1"} {}`} {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			w := httptest.NewRecorder()

			_, ok := DecodeAndPrepare[revokeRequest](w, r, quietLogger, r.Context())
			require.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "bad_request", decodeBody(t, w)["error"])
		}
	})
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
		label  string
	}{
		{dErrors.CodeNotAuthorized, http.StatusForbidden, "not_authorized"},
		{dErrors.CodeAuthorityNotConfigured, http.StatusPreconditionFailed, "authority_not_configured"},
		{dErrors.CodeConflict, http.StatusConflict, "already_exists"},
		{dErrors.CodeNotFound, http.StatusNotFound, "not_found"},
		{dErrors.CodeAuthorizationDenied, http.StatusForbidden, "authorization_denied"},
		{dErrors.CodeInternal, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(tc.code, "msg"))
		assert.Equal(t, tc.status, w.Code, tc.code)
		assert.Equal(t, tc.label, decodeBody(t, w)["error"], tc.code)
	}

	w := httptest.NewRecorder()
	WriteError(w, errors.New("driver exploded"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "driver exploded")
}

func TestRequireCaller(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := RequireCaller(r.Context(), quietLogger)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	caller := id.Address{0x42}
	got, err := RequireCaller(requestcontext.WithCaller(r.Context(), caller), quietLogger)
	require.NoError(t, err)
	assert.Equal(t, caller, got)
}
