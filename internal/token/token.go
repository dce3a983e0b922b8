// Package token issues and verifies the bearer tokens used by the API.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const lifetime = 7 * 24 * time.Hour

// Generate signs an HS256 token whose subject is the user's id.
func Generate(secret []byte, userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(lifetime).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify parses tokenString and returns the user id it was issued for.
func Verify(secret []byte, tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unable to parse claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("subject claim missing or invalid")
	}
	return sub, nil
}
