package endpoint

import "errors"

// Sentinel errors for endpoint declarations.
var (
	// ErrInvalidDefinition is returned when a definition is malformed.
	ErrInvalidDefinition = errors.New("endpoint: invalid definition")

	// ErrMissingParam is returned when args lack a path placeholder value.
	ErrMissingParam = errors.New("endpoint: missing path parameter")

	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("endpoint: duplicate name")
)
