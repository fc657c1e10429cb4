package jwttoken

import (
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/middleware/auth"
)

// JWTServiceAdapter exposes JWTService through the auth middleware's
// validator port.
type JWTServiceAdapter struct {
	service     *JWTService
	requiredEnv string
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

// RequireEnv refuses tokens whose env claim differs from env, so a token
// minted by tokengen for local use is not accepted by a deployed registry.
func (a *JWTServiceAdapter) RequireEnv(env string) *JWTServiceAdapter {
	a.requiredEnv = env
	return a
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if a.requiredEnv != "" && claims.Env != a.requiredEnv {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token issued for another environment")
	}
	return &auth.JWTClaims{Subject: claims.Subject, JTI: claims.ID}, nil
}
