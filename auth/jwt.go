package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParseIdentity decodes the claims of a JWT without verifying its signature.
func ParseIdentity(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	id := &Identity{Claims: make(map[string]any, len(claims))}
	for k, v := range claims {
		id.Claims[k] = v
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id.Subject = sub
	} else if uid, ok := claims["user_id"]; ok {
		id.Subject = fmt.Sprint(uid)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}

	return id, nil
}

// TokenExpiry returns the exp claim of a JWT. ok is false when the token has
// no exp claim.
func TokenExpiry(token string) (exp time.Time, ok bool, err error) {
	id, err := ParseIdentity(token)
	if err != nil {
		return time.Time{}, false, err
	}
	return id.ExpiresAt, !id.ExpiresAt.IsZero(), nil
}
