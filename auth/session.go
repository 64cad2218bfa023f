package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/querycache/credential"
)

// Session manages the stored login of one user.
type Session struct {
	store      credential.Store
	accessKey  string
	refreshKey string
	now        func() time.Time
}

// NewSession creates a session over store, using the key names of config.
func NewSession(store credential.Store, config MiddlewareConfig) *Session {
	config.applyDefaults()
	return &Session{
		store:      store,
		accessKey:  config.CredentialKey,
		refreshKey: config.RefreshKey,
		now:        time.Now,
	}
}

// Login stores the tokens returned by the API's login call. An empty
// refresh token removes any stored one.
func (s *Session) Login(ctx context.Context, access, refresh string) error {
	access = strings.TrimSpace(access)
	if access == "" {
		return ErrMissingCredentials
	}
	if err := s.store.Set(ctx, s.accessKey, access); err != nil {
		return err
	}
	if refresh == "" {
		return s.store.Remove(ctx, s.refreshKey)
	}
	return s.store.Set(ctx, s.refreshKey, refresh)
}

// Logout removes both tokens.
func (s *Session) Logout(ctx context.Context) error {
	return s.store.Remove(ctx, s.accessKey, s.refreshKey)
}

// AccessToken returns the stored access token.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	return s.token(ctx, s.accessKey)
}

// RefreshToken returns the stored refresh token.
func (s *Session) RefreshToken(ctx context.Context) (string, error) {
	return s.token(ctx, s.refreshKey)
}

// Identity decodes the stored access token.
func (s *Session) Identity(ctx context.Context) (*Identity, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return ParseIdentity(token)
}

// Check returns nil when an access token is stored and, if it is a JWT with
// an exp claim, not yet expired. Opaque tokens pass. Otherwise it returns
// ErrMissingCredentials or ErrTokenExpired.
func (s *Session) Check(ctx context.Context) error {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return err
	}
	id, err := ParseIdentity(token)
	if err != nil {
		if errors.Is(err, ErrTokenMalformed) {
			return nil
		}
		return err
	}
	if id.Expired(s.now()) {
		return ErrTokenExpired
	}
	return nil
}

// IsAuthenticated reports whether Check passes.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	return s.Check(ctx) == nil
}

func (s *Session) token(ctx context.Context, key string) (string, error) {
	token, err := s.store.Get(ctx, key)
	if errors.Is(err, credential.ErrNotFound) || (err == nil && token == "") {
		return "", ErrMissingCredentials
	}
	return token, err
}
