// Package auth verifies the bearer tokens issued by the platform's identity
// service and extracts the tenant they act for.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingTenantID  = errors.New("missing tenant claim")
	ErrInvalidTenantID  = errors.New("tenant claim is not a UUID")
)

// clockSkew tolerated on exp and nbf
const clockSkew = 30 * time.Second

// Principal is the verified caller of a request
type Principal struct {
	TenantID  uuid.UUID
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}

// TokenVerifier checks HMAC signed access tokens
type TokenVerifier struct {
	secret      []byte
	issuer      string
	tenantClaim string
	clock       shared.Clock
}

// NewTokenVerifier creates a verifier from the JWT configuration
func NewTokenVerifier(cfg config.JWTConfig, clock shared.Clock) *TokenVerifier {
	if clock == nil {
		clock = shared.SystemClock
	}
	tenantClaim := cfg.TenantClaim
	if tenantClaim == "" {
		tenantClaim = "tenant_id"
	}
	return &TokenVerifier{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		tenantClaim: tenantClaim,
		clock:       clock,
	}
}

// Verify validates the signature, expiry and issuer of tokenString and
// returns the tenant it carries
func (v *TokenVerifier) Verify(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(v.clock),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	raw, ok := claims[v.tenantClaim].(string)
	if !ok || raw == "" {
		return nil, ErrMissingTenantID
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil || tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}

	p := &Principal{TenantID: tenantID}
	p.Subject, _ = claims.GetSubject()
	if jti, ok := claims["jti"].(string); ok {
		p.TokenID = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	return p, nil
}

// Sign issues a token for tenantID in the format Verify accepts. The identity
// service owns issuance; this serves local tooling and tests.
func (v *TokenVerifier) Sign(tenantID uuid.UUID, subject string, ttl time.Duration) (string, error) {
	now := v.clock()
	claims := jwt.MapClaims{
		v.tenantClaim: tenantID.String(),
		"sub":         subject,
		"jti":         uuid.NewString(),
		"iat":         now.Unix(),
		"nbf":         now.Unix(),
		"exp":         now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
