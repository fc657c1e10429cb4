package callback

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

// CallbackMiddlewareSuite tests the verdict endpoint guard.
//
// A request with a wrong or missing token must never reach the handler,
// since the handler resumes pending registry operations.
type CallbackMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestCallbackMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(CallbackMiddlewareSuite))
}

func (s *CallbackMiddlewareSuite) SetupTest() {
	s.logger = slog.Default()
}

func (s *CallbackMiddlewareSuite) serve(expected, presented string) (int, bool) {
	called := false
	handler := RequireCallbackToken(expected, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/registry/requests/abc/verdict", nil)
	if presented != "" {
		req.Header.Set(HeaderName, presented)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code, called
}

func (s *CallbackMiddlewareSuite) TestTokenValidation() {
	s.Run("correct token reaches handler", func() {
		code, called := s.serve("shared-secret", "shared-secret")
		s.Equal(http.StatusOK, code)
		s.True(called)
	})

	s.Run("wrong token is rejected", func() {
		code, called := s.serve("shared-secret", "guess")
		s.Equal(http.StatusUnauthorized, code)
		s.False(called)
	})

	s.Run("missing token is rejected", func() {
		code, called := s.serve("shared-secret", "")
		s.Equal(http.StatusUnauthorized, code)
		s.False(called)
	})

	s.Run("unconfigured token disables the endpoint", func() {
		code, called := s.serve("", "")
		s.Equal(http.StatusUnauthorized, code)
		s.False(called)
	})
}
