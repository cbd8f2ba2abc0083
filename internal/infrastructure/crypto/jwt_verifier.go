// Package crypto verifies the access tokens presented to the admission surfaces.
package crypto

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/pkg/errors"
)

var _ service.TokenVerifier = (*HMACVerifier)(nil)

// HMACVerifier validates HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
	cfg    config.JWTConfig
}

// NewHMACVerifier creates a verifier from the JWT configuration.
func NewHMACVerifier(cfg config.JWTConfig) (*HMACVerifier, error) {
	if cfg.Secret == "" {
		return nil, errors.ErrServerError("jwt.secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &HMACVerifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
		cfg:    cfg,
	}, nil
}

// Verify implements service.TokenVerifier. Every failure is an unauthorized
// AppError wrapping the parser error.
func (v *HMACVerifier) Verify(_ context.Context, tokenString string) (*models.Claims, error) {
	if tokenString == "" {
		return nil, errors.ErrUnauthorized("missing token")
	}

	claims := &models.Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, errors.ErrUnauthorized("invalid token").WithCause(err)
	}
	if !token.Valid || claims.UserID() == "" {
		return nil, errors.ErrUnauthorized("token has no subject")
	}
	return claims, nil
}

// Issue signs a token for userID. It is used by the admin CLI and tests.
func (v *HMACVerifier) Issue(userID, tenantID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    v.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: tenantID,
		Role:     role,
	}
	if v.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{v.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.ErrServerError("failed to sign token").WithCause(err)
	}
	return signed, nil
}
