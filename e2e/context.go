package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	jwttoken "vcregistry/internal/jwt_token"
	id "vcregistry/pkg/domain"
)

// Defaults match config.FromEnv and cmd/tokengen.
const (
	devSigningKey      = "dev-secret-key-change-in-production"
	defaultOwner       = "0x00000000000000000000000000000000000000a1"
	defaultAuthority   = "0x00000000000000000000000000000000000000f1"
	defaultController  = "0x00000000000000000000000000000000000000c1"
	defaultStranger    = "0x00000000000000000000000000000000000000e1"
	defaultCallbackKey = "e2e-callback-token"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	Accounts      map[string]id.Address
	CallbackToken string
	VCID          string
	RequestID     string

	tokens *jwttoken.JWTService
}

// NewTestContext creates a new test context. Every scenario gets a fresh
// VC id so scenarios never collide on a long-running server.
func NewTestContext() *TestContext {
	baseURL := envOr("BASE_URL", "http://localhost:8080")

	tc := &TestContext{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Accounts: map[string]id.Address{
			"owner":      mustAddress(envOr("OWNER_ADDRESS", defaultOwner)),
			"authority":  mustAddress(envOr("LOCAL_AUTHORITY_ADDRESS", defaultAuthority)),
			"controller": mustAddress(envOr("E2E_CONTROLLER_ADDRESS", defaultController)),
			"stranger":   mustAddress(envOr("E2E_STRANGER_ADDRESS", defaultStranger)),
		},
		CallbackToken: envOr("CALLBACK_TOKEN", defaultCallbackKey),
		VCID:          randomVCID(),
		tokens: jwttoken.NewJWTService(
			envOr("JWT_SIGNING_KEY", devSigningKey),
			envOr("JWT_ISSUER", "vcregistry"),
			envOr("JWT_AUDIENCE", "vcregistry-callers"),
			15*time.Minute,
		),
	}
	return tc
}

// Account resolves a named account from the feature files.
func (tc *TestContext) Account(name string) (id.Address, error) {
	a, ok := tc.Accounts[name]
	if !ok {
		return id.Address{}, fmt.Errorf("unknown account %q", name)
	}
	return a, nil
}

// AccountAddress returns the named account in its canonical text form.
func (tc *TestContext) AccountAddress(name string) (string, error) {
	a, err := tc.Account(name)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// AuthHeaders returns a bearer header for the named account.
func (tc *TestContext) AuthHeaders(account string) (map[string]string, error) {
	addr, err := tc.Account(account)
	if err != nil {
		return nil, err
	}
	token, err := tc.tokens.GenerateCallerToken(context.Background(), addr)
	if err != nil {
		return nil, fmt.Errorf("mint token for %s: %w", account, err)
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// CallbackHeaders returns the header the verdict endpoint expects.
func (tc *TestContext) CallbackHeaders() map[string]string {
	return map[string]string{"X-Callback-Token": tc.CallbackToken}
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any, headers map[string]string) error {
	return tc.do(http.MethodPost, path, body, headers)
}

// PUT makes a PUT request and stores the response
func (tc *TestContext) PUT(path string, body any, headers map[string]string) error {
	return tc.do(http.MethodPut, path, body, headers)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField resolves a dotted path such as "state.owner" against the
// last JSON response. Numeric segments index into arrays.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	var node any
	if err := json.Unmarshal(tc.LastResponseBody, &node); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range strings.Split(path, ".") {
		switch v := node.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response", path)
			}
			node = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("field %q: bad index %q", path, key)
			}
			node = v[i]
		default:
			return nil, fmt.Errorf("field %q: %q is not an object", path, key)
		}
	}
	return node, nil
}

// Getter methods for step package interfaces

func (tc *TestContext) GetVCID() string { return tc.VCID }

func (tc *TestContext) GetRequestID() string { return tc.RequestID }

func (tc *TestContext) SetRequestID(requestID string) { tc.RequestID = requestID }

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func mustAddress(s string) id.Address {
	a, err := id.ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("e2e: bad address %q: %v", s, err))
	}
	return a
}

// randomVCID draws a 64-bit id so repeated runs against one database rarely
// collide.
func randomVCID() string {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(1<<63))
	if err != nil {
		return fmt.Sprint(time.Now().UnixNano())
	}
	return n.String()
}
