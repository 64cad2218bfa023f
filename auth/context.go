package auth

import "context"

type contextKey int

const anonymousKey contextKey = iota

// WithAnonymous marks requests sent with ctx as not needing credentials, so
// Middleware does not attach a bearer token (login and sign-up calls).
func WithAnonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey, true)
}

// IsAnonymous reports whether ctx was marked with WithAnonymous.
func IsAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey).(bool)
	return v
}
