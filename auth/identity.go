package auth

import "time"

// Identity is the client's view of the logged-in user, read from the access
// token's claims. The signature is not verified; the API does that.
type Identity struct {
	// Subject is the sub claim, or user_id for tokens that carry that instead.
	Subject string

	// Claims contains every claim of the token.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token has an exp claim at or before now.
func (id *Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}

// Claim returns a string claim.
func (id *Identity) Claim(name string) string {
	s, _ := id.Claims[name].(string)
	return s
}
