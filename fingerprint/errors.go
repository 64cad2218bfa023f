package fingerprint

import "errors"

// Sentinel errors for key derivation.
var (
	// ErrSerialization is returned when args contain values that cannot be
	// encoded as JSON (funcs, channels, cycles, NaN).
	ErrSerialization = errors.New("fingerprint: args are not serializable")

	// ErrInvalidEndpoint is returned for empty or malformed endpoint names.
	ErrInvalidEndpoint = errors.New("fingerprint: endpoint name is invalid")
)
