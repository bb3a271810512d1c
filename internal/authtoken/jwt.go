// Package authtoken mints and verifies the short-lived HS256 tokens used to
// authenticate sync requests. Client and server share a secret from config;
// an empty secret disables auth on both sides.
package authtoken

import (
	"fmt"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const subject = "cardkeeper-sync"

// Mint signs a token valid for ttl.
func Mint(secret string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and subject of a minted token.
func Verify(tokenString, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject != subject {
		return common.ErrInvalidToken
	}
	return nil
}
