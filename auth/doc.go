// Package auth attaches the user's credentials to outbound API requests and
// manages the login session they come from.
//
// Middleware decorates a transport.Adapter: it reads the access token from a
// credential.Store on every request, sets "Authorization: Bearer <token>"
// when one is present, and always sets a fixed diagnostic header. A 401
// reply is reported as ErrUnauthenticated joined with the original
// *transport.ServerError; the middleware never retries it and keeps no
// cache state.
//
// Session is the login/logout surface over the same store, with an
// IsAuthenticated check that also rejects expired JWTs.
package auth
