package credential

import (
	"context"
	"strings"
)

// Store persists credentials by key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get returns ErrNotFound for absent keys; Remove of an absent key
//   is not an error.
// - Privacy: implementations must not log values.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}
