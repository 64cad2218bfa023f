package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/transport"
)

// APIChecker probes the API with an anonymous GET. Any HTTP response below
// 500 counts as reachable.
type APIChecker struct {
	adapter transport.Adapter
	path    string
}

// NewAPIChecker creates a checker that requests path through adapter.
func NewAPIChecker(adapter transport.Adapter, path string) *APIChecker {
	if path == "" {
		path = "/"
	}
	return &APIChecker{adapter: adapter, path: path}
}

// Name returns "api".
func (c *APIChecker) Name() string {
	return "api"
}

// Check performs the probe.
func (c *APIChecker) Check(ctx context.Context) Result {
	_, err := c.adapter.Send(auth.WithAnonymous(ctx), &transport.Request{Method: http.MethodGet, Path: c.path})
	status := transport.StatusCode(err)
	if err == nil {
		status = http.StatusOK
	}
	details := map[string]any{"path": c.path, "status": status}

	var se *transport.ServerError
	switch {
	case err == nil:
		return Healthy("api reachable").WithDetails(details)
	case errors.As(err, &se) && se.Status < http.StatusInternalServerError:
		return Healthy(fmt.Sprintf("api reachable (HTTP %d)", se.Status)).WithDetails(details)
	case errors.As(err, &se):
		return Degraded(fmt.Sprintf("api answering HTTP %d", se.Status), err).WithDetails(details)
	default:
		return Unhealthy("api unreachable", err).WithDetails(details)
	}
}

// SessionChecker reports on the stored login.
type SessionChecker struct {
	session *auth.Session
}

// NewSessionChecker creates a session checker.
func NewSessionChecker(session *auth.Session) *SessionChecker {
	return &SessionChecker{session: session}
}

// Name returns "session".
func (c *SessionChecker) Name() string {
	return "session"
}

// Check reads the access token. A missing or expired token degrades the
// client to anonymous endpoints; an unreadable credential store is unhealthy.
func (c *SessionChecker) Check(ctx context.Context) Result {
	err := c.session.Check(ctx)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return Degraded("not logged in", err)
	case errors.Is(err, auth.ErrTokenExpired):
		return Degraded("session expired", err)
	case err != nil:
		return Unhealthy("credential store unavailable", err)
	}

	id, err := c.session.Identity(ctx)
	if err != nil {
		return Healthy("logged in")
	}
	details := map[string]any{"subject": id.Subject}
	if !id.ExpiresAt.IsZero() {
		details["expires_at"] = id.ExpiresAt
	}
	return Healthy("logged in").WithDetails(details)
}

// CacheChecker summarizes the entries of a cache store.
type CacheChecker struct {
	store *cache.Store
}

// NewCacheChecker creates a cache checker.
func NewCacheChecker(store *cache.Store) *CacheChecker {
	return &CacheChecker{store: store}
}

// Name returns "cache".
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check counts entries by state. Entries whose last fetch failed degrade the
// result.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var loading, stale, failed, subscribed int
	keys := c.store.Keys()
	for _, key := range keys {
		snap, ok := c.store.Entry(key)
		if !ok {
			continue
		}
		switch {
		case snap.Status == cache.StatusError:
			failed++
		case snap.IsLoading():
			loading++
		}
		if snap.Stale {
			stale++
		}
		if snap.Subscribers > 0 {
			subscribed++
		}
	}

	details := map[string]any{
		"entries":    len(keys),
		"subscribed": subscribed,
		"loading":    loading,
		"stale":      stale,
		"failed":     failed,
	}
	if failed > 0 {
		return Degraded(fmt.Sprintf("%d of %d entries failed", failed, len(keys)), ErrCheckFailed).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d entries", len(keys))).WithDetails(details)
}
