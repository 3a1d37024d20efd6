package token

import "errors"

// MinSecretSize is the smallest signing secret the keyring accepts, in bytes.
// HMAC-SHA512 keys shorter than the hash block weaken the MAC, and the
// deployment contract requires rejecting short secrets at startup rather
// than at first use.
const MinSecretSize = 32

// ErrSecretTooShort is an exported constant or variable used by the token engine.
var ErrSecretTooShort = errors.New("signing secret below minimum size")

// Keyring defines a public type used by tokencore APIs.
//
// Keyring instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Keyring struct {
	secret []byte
}

// NewKeyring copies and validates the shared signing secret. It fails fast
// with [ErrSecretTooShort] so a misconfigured deployment never issues a
// single token.
func NewKeyring(secret []byte) (*Keyring, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrSecretTooShort
	}

	owned := make([]byte, len(secret))
	copy(owned, secret)

	return &Keyring{secret: owned}, nil
}

// SigningKey returns the symmetric key used for both signing and
// verification. Read-only after construction; safe for concurrent use.
func (k *Keyring) SigningKey() []byte {
	if k == nil {
		return nil
	}
	return k.secret
}
