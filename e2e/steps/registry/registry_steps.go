package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any, headers map[string]string) error
	PUT(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	AuthHeaders(account string) (map[string]string, error)
	CallbackHeaders() map[string]string
	AccountAddress(name string) (string, error)
	GetVCID() string
	GetRequestID() string
	SetRequestID(requestID string)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

const resolveTimeout = 5 * time.Second

// RegisterSteps registers registry-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	// State and configuration
	ctx.Step(`^"([^"]*)" reads the registry state$`, steps.readState)
	ctx.Step(`^"([^"]*)" configures the authority as "([^"]*)"$`, steps.configureAuthority)
	ctx.Step(`^the registry authority is "([^"]*)"$`, steps.ensureAuthority)

	// Gated operations
	ctx.Step(`^"([^"]*)" uploads a credential for "([^"]*)"$`, steps.uploadCredential)
	ctx.Step(`^"([^"]*)" uploads an opaque credential "([^"]*)" for "([^"]*)"$`, steps.uploadOpaqueCredential)
	ctx.Step(`^"([^"]*)" sets revocation of the credential for "([^"]*)" to (true|false)$`, steps.setRevocation)
	ctx.Step(`^the request resolves as "([^"]*)"$`, steps.requestResolvesAs)
	ctx.Step(`^the request outcome code is "([^"]*)"$`, steps.requestOutcomeCode)

	// Reads
	ctx.Step(`^"([^"]*)" reads the credential for "([^"]*)"$`, steps.readCredential)
	ctx.Step(`^"([^"]*)" lists credentials for "([^"]*)"$`, steps.listCredentials)
	ctx.Step(`^the credential list should contain the credential$`, steps.listShouldContainCredential)

	// Verdict callback
	ctx.Step(`^a verdict arrives for an unknown request$`, steps.verdictForUnknownRequest)
}

type registrySteps struct {
	tc TestContext
}

func (s *registrySteps) readState(ctx context.Context, account string) error {
	headers, err := s.tc.AuthHeaders(account)
	if err != nil {
		return err
	}
	return s.tc.GET("/registry/state", headers)
}

func (s *registrySteps) configureAuthority(ctx context.Context, account, authority string) error {
	headers, err := s.tc.AuthHeaders(account)
	if err != nil {
		return err
	}
	addr, err := s.tc.AccountAddress(authority)
	if err != nil {
		return err
	}
	return s.tc.PUT("/registry/authority", map[string]any{"authority": addr}, headers)
}

// ensureAuthority is a background step: the owner points the registry at
// the named authority and the call must succeed.
func (s *registrySteps) ensureAuthority(ctx context.Context, authority string) error {
	if err := s.configureAuthority(ctx, "owner", authority); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("configure authority returned %d: %s", status, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *registrySteps) uploadCredential(ctx context.Context, account, did string) error {
	return s.submit(account, "/registry/credentials", map[string]any{
		"issuer_did":   did,
		"vc_id":        s.tc.GetVCID(),
		"valid_since":  "2024-01-01T00:00:00Z",
		"valid_until":  "2030-01-01T00:00:00Z",
		"subject_did":  "did:e2e:subject",
		"subject_info": []map[string]string{{"name": "degree", "value": "BSc"}},
		"description":  "e2e credential",
	})
}

func (s *registrySteps) uploadOpaqueCredential(ctx context.Context, account, content, did string) error {
	return s.submit(account, "/registry/credentials", map[string]any{
		"issuer_did":  did,
		"vc_id":       s.tc.GetVCID(),
		"valid_since": "2024-01-01T00:00:00Z",
		"valid_until": "2030-01-01T00:00:00Z",
		"content":     content,
	})
}

func (s *registrySteps) setRevocation(ctx context.Context, account, did, revoked string) error {
	return s.submit(account, "/registry/credentials/revocation", map[string]any{
		"issuer_did": did,
		"vc_id":      s.tc.GetVCID(),
		"revoked":    revoked == "true",
	})
}

// submit posts a gated operation and remembers the request id on 202.
func (s *registrySteps) submit(account, path string, body map[string]any) error {
	headers, err := s.tc.AuthHeaders(account)
	if err != nil {
		return err
	}
	if err := s.tc.POST(path, body, headers); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 202 {
		requestID, err := s.tc.GetResponseField("request_id")
		if err != nil {
			return err
		}
		s.tc.SetRequestID(fmt.Sprint(requestID))
	}
	return nil
}

// requestResolvesAs polls the request until it leaves "pending" and
// "resolving".
func (s *registrySteps) requestResolvesAs(ctx context.Context, expected string) error {
	if s.tc.GetRequestID() == "" {
		return fmt.Errorf("no request was accepted in this scenario")
	}
	headers, err := s.tc.AuthHeaders("owner")
	if err != nil {
		return err
	}

	deadline := time.Now().Add(resolveTimeout)
	for {
		if err := s.tc.GET("/registry/requests/"+s.tc.GetRequestID(), headers); err != nil {
			return err
		}
		status, err := s.tc.GetResponseField("status")
		if err != nil {
			return err
		}
		if status != "pending" && status != "resolving" {
			if status != expected {
				return fmt.Errorf("request resolved as %v, expected %s: %s", status, expected, string(s.tc.GetLastResponseBody()))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("request %s still pending after %s", s.tc.GetRequestID(), resolveTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *registrySteps) requestOutcomeCode(ctx context.Context, expected string) error {
	code, err := s.tc.GetResponseField("code")
	if err != nil {
		return err
	}
	if code != expected {
		return fmt.Errorf("expected outcome code %s, got %v", expected, code)
	}
	return nil
}

func (s *registrySteps) readCredential(ctx context.Context, account, did string) error {
	headers, err := s.tc.AuthHeaders(account)
	if err != nil {
		return err
	}
	return s.tc.GET(fmt.Sprintf("/registry/dids/%s/credentials/%s", url.PathEscape(did), s.tc.GetVCID()), headers)
}

func (s *registrySteps) listCredentials(ctx context.Context, account, did string) error {
	headers, err := s.tc.AuthHeaders(account)
	if err != nil {
		return err
	}
	return s.tc.GET(fmt.Sprintf("/registry/dids/%s/credentials", url.PathEscape(did)), headers)
}

func (s *registrySteps) listShouldContainCredential(ctx context.Context) error {
	var body struct {
		Credentials []struct {
			VCID string `json:"vc_id"`
		} `json:"credentials"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("failed to parse credential list: %w", err)
	}
	for _, c := range body.Credentials {
		if c.VCID == s.tc.GetVCID() {
			return nil
		}
	}
	return fmt.Errorf("credential %s not in list: %s", s.tc.GetVCID(), string(s.tc.GetLastResponseBody()))
}

func (s *registrySteps) verdictForUnknownRequest(ctx context.Context) error {
	return s.tc.POST("/registry/requests/"+uuid.NewString()+"/verdict",
		map[string]any{"success": true}, s.tc.CallbackHeaders())
}
