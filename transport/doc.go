// Package transport delivers requests to the remote API.
//
// An Adapter sends one Request and returns the raw Response. Every non-2xx
// reply is a *ServerError and every failure to get a reply at all (DNS,
// refused connection, timeout, open circuit) is a *NetworkError, so callers
// can branch with errors.As or errors.Is(err, ErrServer) and
// errors.Is(err, ErrNetwork).
//
// HTTPAdapter is the net/http implementation. It joins BaseURL with the
// request path, JSON-encodes bodies and runs each call through a
// resilience.Executor. Adapters compose with Middleware:
//
//	base := transport.NewHTTPAdapter(transport.HTTPConfig{BaseURL: "https://api.example.com/api"})
//	adapter := transport.Chain(base, logging, auth)
package transport
