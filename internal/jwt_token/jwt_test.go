package jwttoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/requestcontext"
)

var caller = id.Address{0xaa, 0xbb}

func newService() *JWTService {
	return NewJWTService("test-signing-key", "vcregistry-test", "vcregistry-callers", time.Minute)
}

func Test_GenerateCallerToken(t *testing.T) {
	svc := newService()
	token, err := svc.GenerateCallerToken(context.Background(), caller)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, caller.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func Test_GenerateCallerToken_RejectsZeroAddress(t *testing.T) {
	_, err := newService().GenerateCallerToken(context.Background(), id.Address{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := newService().ValidateToken("invalid-token-string")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newService()
	ctx := requestcontext.WithTime(context.Background(), time.Now().Add(-time.Hour))
	token, err := svc.GenerateCallerToken(ctx, caller)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.ErrorContains(t, err, "token expired")
}

func Test_ValidateToken_WrongIssuerOrKey(t *testing.T) {
	token, err := NewJWTService("test-signing-key", "someone-else", "vcregistry-callers", time.Minute).
		GenerateCallerToken(context.Background(), caller)
	require.NoError(t, err)
	_, err = newService().ValidateToken(token)
	assert.ErrorContains(t, err, "invalid token")

	token, err = NewJWTService("other-key", "vcregistry-test", "vcregistry-callers", time.Minute).
		GenerateCallerToken(context.Background(), caller)
	require.NoError(t, err)
	_, err = newService().ValidateToken(token)
	assert.ErrorContains(t, err, "invalid token")
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  caller.String(),
			Issuer:   "vcregistry-test",
			Audience: []string{"vcregistry-callers"},
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newService().ValidateToken(token)
	assert.Error(t, err)
}

func Test_Adapter(t *testing.T) {
	svc := newService()
	token, err := svc.GenerateCallerToken(context.Background(), caller)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(svc).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, caller.String(), claims.Subject)
}

func Test_Adapter_RequireEnv(t *testing.T) {
	local := newService()
	local.SetEnv("local")
	localToken, err := local.GenerateCallerToken(context.Background(), caller)
	require.NoError(t, err)

	prod := newService()
	prod.SetEnv("production")
	prodToken, err := prod.GenerateCallerToken(context.Background(), caller)
	require.NoError(t, err)

	adapter := NewJWTServiceAdapter(prod).RequireEnv("production")

	_, err = adapter.ValidateToken(localToken)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	claims, err := adapter.ValidateToken(prodToken)
	require.NoError(t, err)
	assert.Equal(t, caller.String(), claims.Subject)
}
