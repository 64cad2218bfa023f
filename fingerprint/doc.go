// Package fingerprint derives stable cache keys from an endpoint name and its
// arguments.
//
// Arguments are canonicalized to JSON with object keys sorted, so two requests
// that carry the same values produce the same key regardless of map iteration
// order, struct field order, or value identity. Absent arguments are
// equivalent to an empty object.
package fingerprint
