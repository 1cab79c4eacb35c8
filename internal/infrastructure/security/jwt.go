// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// BridgeClaims identify the voice bridge holding a token.
type BridgeClaims struct {
	TenantID string `json:"tenantId"`
	jwt.RegisteredClaims
}

// GenerateBridgeToken signs a token for subject scoped to tenantID.
func GenerateBridgeToken(subject, tenantID, jwtSecret string, ttl time.Duration, now time.Time) (string, error) {
	claims := BridgeClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        GenerateULID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// ValidateJWT validates a bridge token and returns its claims
func ValidateJWT(tokenString, jwtSecret string) (*BridgeClaims, error) {
	claims := &BridgeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
