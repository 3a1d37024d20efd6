package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind defines a public type used by tokencore APIs.
//
// Kind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Kind string

const (
	// KindAccess is an exported constant or variable used by the token engine.
	KindAccess Kind = "access"
	// KindRefresh is an exported constant or variable used by the token engine.
	KindRefresh Kind = "refresh"
)

// Claims is the closed, versionless claim set embedded in every token.
// The registered claims carry subject (principal id), issuer, issued-at,
// expiry, and the jti; everything domain-specific lives in the named fields.
// Unknown JSON fields in an inbound token are ignored at decode time.
type Claims struct {
	Username    string   `json:"username,omitempty"`
	Kind        Kind     `json:"type"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Remaining reports the lifetime left on the claims relative to now.
// Negative when already expired, zero when no expiry is set.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
