package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/querycache/credential"
	"github.com/jonwraymond/querycache/transport"
)

// MiddlewareConfig configures the auth middleware.
type MiddlewareConfig struct {
	// CredentialKey is the store key of the access token.
	// Default: "access"
	CredentialKey string

	// RefreshKey is the store key of the refresh token, removed alongside
	// the access token by ClearOnUnauthenticated.
	// Default: "refresh"
	RefreshKey string

	// DiagnosticHeader and DiagnosticValue are set on every request.
	// Default: "ngrok-skip-browser-warning: true"
	DiagnosticHeader string
	DiagnosticValue  string

	// ClearOnUnauthenticated removes the stored tokens after a 401.
	ClearOnUnauthenticated bool

	// OnUnauthenticated is called after a 401, before the error is returned.
	OnUnauthenticated func(ctx context.Context, err *transport.ServerError)
}

func (c *MiddlewareConfig) applyDefaults() {
	if c.CredentialKey == "" {
		c.CredentialKey = "access"
	}
	if c.RefreshKey == "" {
		c.RefreshKey = "refresh"
	}
	if c.DiagnosticHeader == "" {
		c.DiagnosticHeader = "ngrok-skip-browser-warning"
		if c.DiagnosticValue == "" {
			c.DiagnosticValue = "true"
		}
	}
}

// Authenticator decorates an adapter with credentials.
type Authenticator struct {
	next   transport.Adapter
	store  credential.Store
	config MiddlewareConfig
}

// NewMiddleware wraps next so that every request carries the stored token.
func NewMiddleware(next transport.Adapter, store credential.Store, config MiddlewareConfig) *Authenticator {
	config.applyDefaults()
	return &Authenticator{next: next, store: store, config: config}
}

// Middleware returns a transport.Middleware for use with transport.Chain.
func Middleware(store credential.Store, config MiddlewareConfig) transport.Middleware {
	return func(next transport.Adapter) transport.Adapter {
		return NewMiddleware(next, store, config)
	}
}

// Send attaches headers, forwards the request, and maps 401 replies.
// A store read failure other than ErrNotFound is returned without sending.
func (a *Authenticator) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	out := req.Clone()
	out.SetHeader(a.config.DiagnosticHeader, a.config.DiagnosticValue)

	if !IsAnonymous(ctx) && a.store != nil {
		token, err := a.store.Get(ctx, a.config.CredentialKey)
		switch {
		case err == nil && token != "":
			out.SetHeader("Authorization", "Bearer "+token)
		case err != nil && !errors.Is(err, credential.ErrNotFound):
			return nil, fmt.Errorf("auth: read credentials: %w", err)
		}
	}

	resp, err := a.next.Send(ctx, out)
	if err == nil {
		return resp, nil
	}

	var se *transport.ServerError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		return nil, err
	}

	if a.config.ClearOnUnauthenticated && a.store != nil {
		// Cleanup errors are dropped.
		_ = a.store.Remove(ctx, a.config.CredentialKey, a.config.RefreshKey)
	}
	if a.config.OnUnauthenticated != nil {
		a.config.OnUnauthenticated(ctx, se)
	}
	return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, se)
}

var _ transport.Adapter = (*Authenticator)(nil)
