package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrExpiredToken     = errors.New("token expired")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrNotServiceToken  = errors.New("not an internal service token")
)

// ServiceTypeInternal marks tokens issued to backend services. Tokens
// without this claim are never accepted on the service-to-service tier.
const ServiceTypeInternal = "internal"

// Claims carried by gateway-issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role        string `json:"role,omitempty"`
	ServiceType string `json:"service_type,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

// Authenticator issues and verifies HS256-signed tokens with a shared
// symmetric secret.
type Authenticator struct {
	secret     []byte
	defaultTTL time.Duration
}

func NewAuthenticator(secret []byte, defaultTTL time.Duration) *Authenticator {
	return &Authenticator{secret: secret, defaultTTL: defaultTTL}
}

// Issue creates a signed user token for subject with the given role.
// ttl <= 0 falls back to the authenticator default.
func (a *Authenticator) Issue(subject, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueService creates an internal service token for service-to-service
// calls, marked with service_type=internal.
func (a *Authenticator) IssueService(serviceName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serviceName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ServiceType: ServiceTypeInternal,
		ServiceName: serviceName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, structure and expiry and returns the claims.
// Expiry is reported as ErrExpiredToken; signature mismatches as
// ErrInvalidSignature; everything else as ErrMalformedToken. The HMAC
// compare inside the jwt library is constant-time.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}
	if !token.Valid {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// VerifyService validates an internal service token. A token that is
// otherwise valid but lacks the internal marker is rejected; user tokens
// must never cross the service trust tier.
func (a *Authenticator) VerifyService(tokenString string) (*Claims, error) {
	claims, err := a.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.ServiceType != ServiceTypeInternal {
		return nil, ErrNotServiceToken
	}
	return claims, nil
}
