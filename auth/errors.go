package auth

import "errors"

// Sentinel errors for authentication.
var (
	// ErrUnauthenticated is returned when the API rejects the request's
	// credentials (HTTP 401).
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrMissingCredentials is returned when no access token is stored.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrTokenMalformed is returned for tokens that are not JWTs.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrTokenExpired is returned for JWTs past their exp claim.
	ErrTokenExpired = errors.New("auth: token expired")
)
