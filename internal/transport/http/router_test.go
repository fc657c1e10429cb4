package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	jwttoken "vcregistry/internal/jwt_token"
	"vcregistry/internal/platform/health"
	"vcregistry/internal/registry/gate"
	"vcregistry/internal/registry/handler"
	"vcregistry/internal/registry/models"
	"vcregistry/internal/registry/pending"
	"vcregistry/internal/registry/service"
	"vcregistry/internal/registry/store"
	id "vcregistry/pkg/domain"
	"vcregistry/pkg/platform/middleware/callback"
)

const callbackToken = "callback-secret"

var (
	ownerAddr     = id.Address{19: 0x01}
	callerAddr    = id.Address{19: 0x0c}
	strangerAddr  = id.Address{19: 0x5e}
	authorityAddr = id.Address{19: 0xaa}
)

// manualDispatcher leaves every request pending so verdicts arrive over HTTP.
type manualDispatcher struct{}

func (manualDispatcher) Dispatch(context.Context, *models.PendingRequest) error { return nil }

// RouterSuite drives the registry through the full middleware stack.
type RouterSuite struct {
	suite.Suite
	server *httptest.Server
	tokens *jwttoken.JWTService
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.tokens = jwttoken.NewJWTService("test-signing-key", "vcregistry", "vcregistry-callers", time.Hour)

	svc := service.New(store.NewInMemory(), store.NewInMemoryState(),
		gate.New(pending.NewInMemory(), manualDispatcher{}, gate.WithLogger(logger)),
		service.WithLogger(logger),
	)
	_, err := svc.Initialize(context.Background(), ownerAddr, models.VariantGated)
	s.Require().NoError(err)

	router := NewRouter(Config{
		Logger:        logger,
		Validator:     jwttoken.NewJWTServiceAdapter(s.tokens),
		CallbackToken: callbackToken,
		Health:        health.New("test", string(models.VariantGated)),
	}, handler.New(svc, logger))
	s.server = httptest.NewServer(router)
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) token(addr id.Address) string {
	tok, err := s.tokens.GenerateCallerToken(context.Background(), addr)
	s.Require().NoError(err)
	return tok
}

func (s *RouterSuite) call(method, path string, as id.Address, body any, headers ...string) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if !as.IsZero() {
		req.Header.Set("Authorization", "Bearer "+s.token(as))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (s *RouterSuite) verdict(requestID string, success bool) (int, map[string]any) {
	return s.call(http.MethodPost, "/registry/requests/"+requestID+"/verdict", id.Address{},
		map[string]bool{"success": success}, callback.HeaderName, callbackToken)
}

func (s *RouterSuite) TestUnauthenticatedCallsAreRejected() {
	status, _ := s.call(http.MethodGet, "/registry/state", id.Address{}, nil)
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.call(http.MethodPost, "/registry/requests/"+id.NewRequestID().String()+"/verdict",
		id.Address{}, map[string]bool{"success": true})
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.call(http.MethodPost, "/registry/requests/"+id.NewRequestID().String()+"/verdict",
		id.Address{}, map[string]bool{"success": true}, callback.HeaderName, "wrong")
	s.Equal(http.StatusUnauthorized, status)
}

func (s *RouterSuite) TestHealthIsPublic() {
	status, body := s.call(http.MethodGet, "/health/live", id.Address{}, nil)
	s.Equal(http.StatusOK, status)
	s.NotEmpty(body["status"])
}

func (s *RouterSuite) TestCredentialLifecycle() {
	status, _ := s.call(http.MethodPost, "/registry/credentials", callerAddr,
		map[string]any{"issuer_did": "did:x:1", "vc_id": "7", "description": "test"})
	s.Equal(http.StatusPreconditionFailed, status, "authority must be configured first")

	status, _ = s.call(http.MethodPut, "/registry/authority", strangerAddr,
		map[string]string{"authority": authorityAddr.String()})
	s.Equal(http.StatusForbidden, status)

	status, body := s.call(http.MethodPut, "/registry/authority", ownerAddr,
		map[string]string{"authority": authorityAddr.String()})
	s.Require().Equal(http.StatusOK, status)
	s.Equal(authorityAddr.String(), body["authority"])

	status, body = s.call(http.MethodPost, "/registry/credentials", callerAddr,
		map[string]any{"issuer_did": "did:x:1", "vc_id": "7", "description": "test"})
	s.Require().Equal(http.StatusAccepted, status)
	upload := body["request_id"].(string)
	s.Equal(callerAddr.String(), body["caller"])

	status, _ = s.call(http.MethodGet, "/registry/dids/did:x:1/credentials/7", callerAddr, nil)
	s.Equal(http.StatusNotFound, status, "nothing is stored before the verdict")

	status, body = s.verdict(upload, true)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("committed", body["status"])

	status, body = s.call(http.MethodGet, "/registry/dids/did:x:1/credentials/7", callerAddr, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("test", body["description"])
	s.Equal(false, body["revoked"])

	status, _ = s.verdict(upload, true)
	s.Equal(http.StatusNotFound, status, "a request resumes once")

	status, body = s.call(http.MethodPost, "/registry/credentials/revocation", callerAddr,
		map[string]any{"issuer_did": "did:x:1", "vc_id": "7", "revoked": true})
	s.Require().Equal(http.StatusAccepted, status)
	revoke := body["request_id"].(string)

	status, _ = s.verdict(revoke, false)
	s.Equal(http.StatusForbidden, status)

	status, body = s.call(http.MethodGet, "/registry/requests/"+revoke, callerAddr, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("denied", body["status"])

	_, body = s.call(http.MethodGet, "/registry/dids/did:x:1/credentials/7", callerAddr, nil)
	s.Equal(false, body["revoked"])

	status, body = s.call(http.MethodPost, "/registry/credentials", callerAddr,
		map[string]any{"issuer_did": "did:x:1", "vc_id": "7", "description": "again"})
	s.Require().Equal(http.StatusAccepted, status)
	status, _ = s.verdict(body["request_id"].(string), true)
	s.Equal(http.StatusConflict, status)

	status, body = s.call(http.MethodGet, "/registry/dids/did:x:1/credentials", callerAddr, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Len(body["credentials"], 1)

	status, body = s.call(http.MethodGet, "/registry/dids", callerAddr, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal([]any{"did:x:1"}, body["dids"])
}
