// Package identity extracts the local user id from the bearer token issued by
// the identity provider. The token is already verified by the provider and
// the backend; the client only needs the stable subject claim out of it.
package identity

import (
	"github.com/golang-jwt/jwt/v4"

	"gigspace/pkg/errors"
)

// UserIDFromToken parses the bearer JWT without verifying its signature and
// returns the subject claim. An empty or unparseable token is a caller error.
func UserIDFromToken(token string) (string, error) {
	if token == "" {
		return "", errors.Unauthorized("missing bearer token", nil)
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", errors.Unauthorized("malformed bearer token", err)
	}

	if claims.Subject == "" {
		return "", errors.Unauthorized("bearer token has no subject", nil)
	}

	return claims.Subject, nil
}
