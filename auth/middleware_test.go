package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jonwraymond/querycache/credential"
	"github.com/jonwraymond/querycache/transport"
)

type recordingAdapter struct {
	last *transport.Request
	resp *transport.Response
	err  error
}

func (r *recordingAdapter) Send(_ context.Context, req *transport.Request) (*transport.Response, error) {
	r.last = req
	if r.err != nil {
		return nil, r.err
	}
	if r.resp != nil {
		return r.resp, nil
	}
	return &transport.Response{Status: http.StatusOK}, nil
}

type failingStore struct{ credential.Store }

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("disk on fire")
}

func TestMiddleware_AttachesHeaders(t *testing.T) {
	tests := []struct {
		name      string
		seed      map[string]string
		ctx       context.Context
		wantAuth  string
		wantDiagn string
	}{
		{"with token", map[string]string{"access": "abc"}, context.Background(), "Bearer abc", "true"},
		{"without token", nil, context.Background(), "", "true"},
		{"empty token", map[string]string{"access": ""}, context.Background(), "", "true"},
		{"anonymous", map[string]string{"access": "abc"}, WithAnonymous(context.Background()), "", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingAdapter{}
			a := NewMiddleware(next, credential.NewMemoryStore(tt.seed), MiddlewareConfig{})

			if _, err := a.Send(tt.ctx, &transport.Request{Path: "/me"}); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if got := next.last.Header.Get("Authorization"); got != tt.wantAuth {
				t.Errorf("Authorization = %q, want %q", got, tt.wantAuth)
			}
			if got := next.last.Header.Get("ngrok-skip-browser-warning"); got != tt.wantDiagn {
				t.Errorf("diagnostic header = %q, want %q", got, tt.wantDiagn)
			}
		})
	}
}

func TestMiddleware_DoesNotMutateCallerRequest(t *testing.T) {
	next := &recordingAdapter{}
	a := NewMiddleware(next, credential.NewMemoryStore(map[string]string{"access": "abc"}), MiddlewareConfig{})

	req := &transport.Request{Path: "/me"}
	_, _ = a.Send(context.Background(), req)

	if req.Header != nil {
		t.Errorf("caller request was modified: %v", req.Header)
	}
}

func TestMiddleware_CustomKeys(t *testing.T) {
	next := &recordingAdapter{}
	store := credential.NewMemoryStore(map[string]string{"token": "xyz"})
	a := NewMiddleware(next, store, MiddlewareConfig{
		CredentialKey:    "token",
		DiagnosticHeader: "X-Client",
		DiagnosticValue:  "cli",
	})

	_, _ = a.Send(context.Background(), &transport.Request{})

	if got := next.last.Header.Get("Authorization"); got != "Bearer xyz" {
		t.Errorf("Authorization = %q", got)
	}
	if got := next.last.Header.Get("X-Client"); got != "cli" {
		t.Errorf("X-Client = %q", got)
	}
}

func TestMiddleware_Unauthenticated(t *testing.T) {
	se := &transport.ServerError{Status: http.StatusUnauthorized, Body: []byte(`{"detail":"expired"}`)}
	store := credential.NewMemoryStore(map[string]string{"access": "a", "refresh": "r"})

	var hooked *transport.ServerError
	a := NewMiddleware(&recordingAdapter{err: se}, store, MiddlewareConfig{
		ClearOnUnauthenticated: true,
		OnUnauthenticated: func(_ context.Context, err *transport.ServerError) {
			hooked = err
		},
	})

	_, err := a.Send(context.Background(), &transport.Request{})

	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("error = %v, want ErrUnauthenticated", err)
	}
	var got *transport.ServerError
	if !errors.As(err, &got) || got.Status != http.StatusUnauthorized {
		t.Errorf("error should still carry the ServerError, got %v", err)
	}
	if hooked != se {
		t.Error("OnUnauthenticated was not called with the ServerError")
	}
	for _, key := range []string{"access", "refresh"} {
		if _, err := store.Get(context.Background(), key); !errors.Is(err, credential.ErrNotFound) {
			t.Errorf("%s should be cleared, Get() error = %v", key, err)
		}
	}
}

func TestMiddleware_PassesOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"403", &transport.ServerError{Status: http.StatusForbidden}},
		{"400", &transport.ServerError{Status: http.StatusBadRequest}},
		{"network", &transport.NetworkError{Op: "GET /", Err: errors.New("refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := credential.NewMemoryStore(map[string]string{"access": "a"})
			a := NewMiddleware(&recordingAdapter{err: tt.err}, store, MiddlewareConfig{ClearOnUnauthenticated: true})

			_, err := a.Send(context.Background(), &transport.Request{})
			if err != tt.err {
				t.Errorf("error = %v, want unchanged %v", err, tt.err)
			}
			if errors.Is(err, ErrUnauthenticated) {
				t.Error("non-401 must not be ErrUnauthenticated")
			}
			if _, err := store.Get(context.Background(), "access"); err != nil {
				t.Error("token should be kept on non-401 errors")
			}
		})
	}
}

func TestMiddleware_StoreFailure(t *testing.T) {
	next := &recordingAdapter{}
	a := NewMiddleware(next, failingStore{}, MiddlewareConfig{})

	_, err := a.Send(context.Background(), &transport.Request{})
	if err == nil {
		t.Fatal("expected store error")
	}
	if !strings.HasPrefix(err.Error(), "auth: read credentials: ") {
		t.Errorf("error = %q, want auth: prefix", err)
	}
	if next.last != nil {
		t.Error("request must not be sent when credentials cannot be read")
	}
}

func TestMiddleware_Chain(t *testing.T) {
	next := &recordingAdapter{}
	store := credential.NewMemoryStore(map[string]string{"access": "abc"})
	adapter := transport.Chain(next, Middleware(store, MiddlewareConfig{}))

	_, _ = adapter.Send(context.Background(), &transport.Request{})
	if got := next.last.Header.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Authorization = %q", got)
	}
}
