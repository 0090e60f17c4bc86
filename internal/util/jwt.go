package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AdminClaims are the claims carried by admin tokens for the operational
// endpoints (cache clear, forced checks).
type AdminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 admin tokens.
type JWTManager struct {
	signingKey []byte
	issuer     string
}

func NewJWTManager(signingKey, issuer string) *JWTManager {
	return &JWTManager{signingKey: []byte(signingKey), issuer: issuer}
}

// IssueToken mints an admin token, mainly for tooling and tests.
func (m *JWTManager) IssueToken(scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies an admin token.
func (m *JWTManager) ValidateToken(tokenStr string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, errors.New("unexpected token issuer")
	}
	return claims, nil
}
