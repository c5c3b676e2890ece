// Package auth issues and verifies the access tokens of this service.
//
// The binding acts on behalf of users against ReCodEx with a delegated token
// obtained during login. That token is never stored whole: one half stays in
// the database, the other half travels inside our signed JWT. Either part
// alone is useless, the full token exists only in memory of a single request.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token scopes.
const (
	// ScopeMaster allows regular API operations.
	ScopeMaster = "master"
	// ScopeRefresh allows obtaining a fresh access token.
	ScopeRefresh = "refresh"
)

// Claims carried by our access tokens. Subject holds the ReCodEx user ID.
type Claims struct {
	jwt.RegisteredClaims

	// Scopes the token was issued with.
	Scopes []string `json:"scopes"`
	// TokenSuffix is the in-flight half of the delegated ReCodEx token.
	TokenSuffix string `json:"tokenSuffix"`
}

// HasScope checks one scope of the token.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}

	return false
}

// SplitToken cuts a delegated token into the stored prefix and the in-flight suffix.
func SplitToken(token string) (prefix, suffix string, err error) {
	if len(token) < 2 {
		return "", "", ErrTokenTooShort
	}
	half := len(token) / 2

	return token[:half], token[half:], nil
}

// JoinToken reassembles a delegated token from its halves.
func JoinToken(prefix, suffix string) string {
	return prefix + suffix
}

// Issue creates a signed access token for the user.
func Issue(secret, userID, tokenSuffix string, scopes []string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Scopes:      scopes,
		TokenSuffix: tokenSuffix,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secret))
}

// Verify parses and validates an access token and returns its claims.
func Verify(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
