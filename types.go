package tokencore

import "time"

// TokenTypeBearer is an exported constant or variable used by the token engine.
const TokenTypeBearer = "Bearer"

// Principal is the already-verified identity the caller hands to Mint.
// Roles and permissions are opaque authority strings; the engine embeds
// them in the token and never interprets them. The engine does not mutate
// a Principal.
type Principal struct {
	ID          string
	Username    string
	Roles       []string
	Permissions []string
}

// PrincipalView is returned by [Engine.ValidateAccess] and carries the
// identity and authority strings decoded from a valid access token.
type PrincipalView struct {
	ID          string
	Username    string
	Roles       []string
	Permissions []string
}

// HasRole describes the hasrole operation and its observable behavior.
//
// HasRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *PrincipalView) HasRole(role string) bool {
	if v == nil {
		return false
	}
	for _, r := range v.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission describes the haspermission operation and its observable behavior.
//
// HasPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *PrincipalView) HasPermission(perm string) bool {
	if v == nil {
		return false
	}
	for _, p := range v.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// TokenPair is the transient result of Mint and Rotate. It is never
// persisted as a whole; only its bookkeeping entries live in the store.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresIn  int64
	RefreshExpiresIn int64
	NeedsRefreshSoon bool
}

// TokenInfo describes one outstanding refresh token of a user, as returned
// by [Engine.ListActiveTokens]. The token string itself is never stored and
// cannot be recovered from this view.
type TokenInfo struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
