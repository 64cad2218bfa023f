package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Sentinel errors for transport operations.
var (
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("transport: network error")

	// ErrServer matches every *ServerError.
	ErrServer = errors.New("transport: server error")

	// ErrInvalidRequest is returned when a request cannot be built.
	ErrInvalidRequest = errors.New("transport: invalid request")
)

// NetworkError reports that no response was received.
type NetworkError struct {
	// Op is the method and URL of the request.
	Op string
	// Idempotent reports whether repeating the request is safe.
	Idempotent bool
	Err        error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrNetwork and the cause.
func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetwork, e.Err}
}

// ServerError reports a non-2xx response. Body holds the raw payload, which
// for validation failures is usually a field → messages object.
type ServerError struct {
	Status int
	Header http.Header
	Body   []byte
}

func (e *ServerError) Error() string {
	msg := e.Detail()
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("transport: server returned %d: %s", e.Status, msg)
}

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// Decode unmarshals the error payload into v.
func (e *ServerError) Decode(v any) error {
	return json.Unmarshal(e.Body, v)
}

// Detail returns the human-readable message of the payload, if any.
func (e *ServerError) Detail() string {
	if !gjson.ValidBytes(e.Body) {
		return ""
	}
	for _, path := range []string{"detail", "message", "error"} {
		if r := gjson.GetBytes(e.Body, path); r.Type == gjson.String {
			return r.String()
		}
	}
	return ""
}

// FieldErrors returns per-field validation messages from a payload shaped
// like {"email": ["invalid"], "name": "required"}. Non-object payloads
// yield nil.
func (e *ServerError) FieldErrors() map[string][]string {
	root := gjson.ParseBytes(e.Body)
	if !root.IsObject() {
		return nil
	}

	out := make(map[string][]string)
	root.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsArray():
			for _, item := range value.Array() {
				if item.Type == gjson.String {
					out[key.String()] = append(out[key.String()], item.String())
				}
			}
		case value.Type == gjson.String:
			out[key.String()] = []string{value.String()}
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// RetryAfter parses the Retry-After header, in seconds or as an HTTP date.
func (e *ServerError) RetryAfter() (time.Duration, bool) {
	v := e.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// IsRetryable reports whether repeating the request may succeed: an
// idempotent request that got no response for a reason other than the
// caller giving up, or a 429/503 that carries a Retry-After hint.
func IsRetryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Idempotent && !errors.Is(err, context.Canceled)
	}
	var se *ServerError
	if errors.As(err, &se) {
		if se.Status != http.StatusTooManyRequests && se.Status != http.StatusServiceUnavailable {
			return false
		}
		_, ok := se.RetryAfter()
		return ok
	}
	return false
}

// IsServerFault reports whether err indicates the API itself is unhealthy.
// Client errors (4xx) and caller cancellation do not count.
func IsServerFault(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	return errors.Is(err, ErrNetwork)
}

func retryAfter(err error) (time.Duration, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se.RetryAfter()
	}
	return 0, false
}
