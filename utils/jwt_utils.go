package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session kinds carried in the token.
const (
	KindAdmin  = "admin"
	KindMember = "member"
)

// Claims identifies either an admin (Subject = username) or a member
// (Subject = email).
type Claims struct {
	Kind        string   `json:"type"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool  { return c.Kind == KindAdmin }
func (c *Claims) IsMember() bool { return c.Kind == KindMember }

// GenerateJWT signs claims with HS256, valid for ttl from now.
func GenerateJWT(secret []byte, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.NotBefore = jwt.NewNumericDate(now)
	claims.RegisteredClaims.Issuer = "cardtalk-api"

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT parses and validates a token string.
func ValidateJWT(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Kind != KindAdmin && claims.Kind != KindMember {
		return nil, fmt.Errorf("unknown session type %q", claims.Kind)
	}
	return claims, nil
}
