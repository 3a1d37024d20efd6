// Package token is the pure codec layer of tokencore: it turns a claim set
// into a signed compact JWS string and back, with no I/O and no store access.
//
// The codec is deliberately isolated from the lifecycle engine so it can be
// fuzzed and property-tested on its own. Signing is symmetric (HMAC-SHA512)
// over the standard three-segment base64url envelope; any service holding the
// shared secret can verify tokens produced here without talking to the
// issuer.
//
// Decode failures are typed: [ErrMalformed], [ErrSignatureMismatch], and
// [ErrExpired] are the only errors a caller needs to branch on, and all three
// are permanent for a given token string.
package token
