package tokencore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/exchangekit/tokencore/token"
)

// claimsFor builds the claim set for one token of the pair. The jti is
// supplied by the caller so mint controls identifier freshness, and the
// codec stays free of randomness.
func claimsFor(p Principal, kind token.Kind, issuer, jti string, now time.Time, ttl time.Duration) *token.Claims {
	return &token.Claims{
		Username:    p.Username,
		Kind:        kind,
		Roles:       copyStrings(p.Roles),
		Permissions: copyStrings(p.Permissions),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
}

// principalFromClaims rebuilds the minimal principal a rotation needs from
// the refresh token's own claims. No user store is consulted; the claims
// are the source of truth for the pair being replaced.
func principalFromClaims(c *token.Claims) Principal {
	return Principal{
		ID:          c.Subject,
		Username:    c.Username,
		Roles:       copyStrings(c.Roles),
		Permissions: copyStrings(c.Permissions),
	}
}

func viewFromClaims(c *token.Claims) *PrincipalView {
	return &PrincipalView{
		ID:          c.Subject,
		Username:    c.Username,
		Roles:       copyStrings(c.Roles),
		Permissions: copyStrings(c.Permissions),
	}
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
