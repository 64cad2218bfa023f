package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Request is one call to the API. Path is relative to the adapter's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is sent as JSON. json.RawMessage and []byte are sent verbatim.
	Body any
}

// SetHeader sets a header, allocating the map if needed.
func (r *Request) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
}

// Clone returns a copy whose Header and Query can be modified independently.
func (r *Request) Clone() *Request {
	c := *r
	if r.Header != nil {
		c.Header = r.Header.Clone()
	}
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// Response is a 2xx reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON returns the body as raw JSON; an empty body (204) is null.
func (r *Response) JSON() json.RawMessage {
	if len(r.Body) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(r.Body)
}

// Adapter sends requests to the API.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Resolution: Send must return within a bounded time.
// - Errors: non-2xx replies are *ServerError; no reply is *NetworkError.
type Adapter interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f.
func (f AdapterFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware decorates an Adapter.
type Middleware func(next Adapter) Adapter

// Chain wraps base with mws. The last middleware is outermost, so it sees
// the request first.
func Chain(base Adapter, mws ...Middleware) Adapter {
	a := base
	for _, mw := range mws {
		a = mw(a)
	}
	return a
}
