package fingerprint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MaxKeyLength is the longest key kept in readable form. Longer canonical
// args are replaced by a digest.
const MaxKeyLength = 512

// emptyArgs is the canonical form of absent arguments.
var emptyArgs = json.RawMessage("{}")

// Key identifies one logical request: an endpoint plus normalized args.
type Key string

// String returns the key as a string.
func (k Key) String() string {
	return string(k)
}

// Endpoint returns the endpoint name the key was derived from.
func (k Key) Endpoint() string {
	s := string(k)
	if i := strings.IndexAny(s, "(#"); i >= 0 {
		return s[:i]
	}
	return s
}

// Keyer generates deterministic cache keys from endpoint arguments.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: non-serializable args fail with ErrSerialization.
type Keyer interface {
	// Key generates a cache key from an endpoint name and its args.
	Key(endpoint string, args any) (Key, error)

	// Canonical returns the normalized JSON form of args.
	Canonical(args any) (json.RawMessage, error)
}

// DefaultKeyer produces readable keys of the form endpoint(canonical-json),
// falling back to endpoint#xxhash when the readable form is too long.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
func (k *DefaultKeyer) Key(endpoint string, args any) (Key, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return "", err
	}

	canonical, err := k.Canonical(args)
	if err != nil {
		return "", err
	}

	return Build(endpoint, canonical), nil
}

// Canonical normalizes args to sorted-key JSON. nil and JSON null both
// normalize to {}.
func (k *DefaultKeyer) Canonical(args any) (json.RawMessage, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	// Round-trip through a generic value so struct field order and
	// map ordering no longer matter.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if v == nil {
		return emptyArgs, nil
	}

	canonical, err := canonicalize(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return canonical, nil
}

// Build assembles a key from an endpoint name and already-canonical args.
func Build(endpoint string, canonical json.RawMessage) Key {
	if len(canonical) == 0 {
		canonical = emptyArgs
	}
	if len(endpoint)+len(canonical)+2 <= MaxKeyLength {
		return Key(endpoint + "(" + string(canonical) + ")")
	}
	return Key(fmt.Sprintf("%s#%016x", endpoint, xxhash.Sum64(canonical)))
}

// ValidateEndpoint checks that an endpoint name can be embedded in a key.
func ValidateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return ErrInvalidEndpoint
	}
	if strings.ContainsAny(endpoint, "(#\n\r") {
		return ErrInvalidEndpoint
	}
	return nil
}

// canonicalize produces a deterministic JSON representation of a decoded value.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
