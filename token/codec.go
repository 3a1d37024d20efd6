package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed is an exported constant or variable used by the token engine.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureMismatch is an exported constant or variable used by the token engine.
	ErrSignatureMismatch = errors.New("token signature mismatch")
	// ErrExpired is an exported constant or variable used by the token engine.
	ErrExpired = errors.New("token expired")
)

const maxLeeway = 2 * time.Minute

// Config defines a public type used by tokencore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Issuer is stamped into every token and enforced on decode when set.
	Issuer string
	// Leeway is the clock-skew tolerance applied to expiry checks on decode.
	// Zero by default; bounded at two minutes.
	Leeway time.Duration
	// TimeFunc overrides the clock used for expiry validation. Nil means
	// time.Now. Intended for tests.
	TimeFunc func() time.Time
}

// Codec defines a public type used by tokencore APIs.
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec struct {
	keys   *Keyring
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec(keys *Keyring, cfg Config) (*Codec, error) {
	if keys == nil {
		return nil, errors.New("keyring required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}

	now := cfg.TimeFunc
	if now == nil {
		now = time.Now
	}

	return &Codec{
		keys:   keys,
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    now,
	}, nil
}

// Encode serializes and signs the claim set. The caller supplies a fully
// built claim set including the jti; the codec never generates identifiers.
// Deterministic for identical claims and key.
func (c *Codec) Encode(claims *Claims) (string, error) {
	if c == nil || c.keys == nil {
		return "", errors.New("codec not initialized")
	}
	if claims == nil || claims.ID == "" {
		return "", errors.New("claims missing token id")
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return "", errors.New("claims missing token kind")
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return t.SignedString(c.keys.SigningKey())
}

// Decode parses and verifies a compact token string. Failures map onto the
// package's three sentinels; a token whose expiry equals the current instant
// is already expired.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	if c == nil || c.keys == nil {
		return nil, errors.New("codec not initialized")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.keys.SigningKey(), nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.ID == "" {
		return nil, ErrMalformed
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, ErrMalformed
	}

	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureMismatch
	default:
		return ErrMalformed
	}
}
