package tokencore

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the token engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrConfigInvalid is an exported constant or variable used by the token engine.
	ErrConfigInvalid = errors.New("invalid configuration")
	// ErrPrincipalInvalid is an exported constant or variable used by the token engine.
	ErrPrincipalInvalid = errors.New("invalid principal")
	// ErrTokenInvalid is the collapsed decode failure returned to callers;
	// it deliberately hides whether the token was malformed or forged so
	// the distinction cannot leak across the trust boundary. Expiry is the
	// one decode failure kept separate, as ErrTokenExpired.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the token engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenKind is an exported constant or variable used by the token engine.
	ErrWrongTokenKind = errors.New("wrong token kind")
	// ErrTokenRevoked is an exported constant or variable used by the token engine.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrRefreshAlreadyUsed is an exported constant or variable used by the token engine.
	ErrRefreshAlreadyUsed = errors.New("refresh token already used")
	// ErrStoreUnavailable is an exported constant or variable used by the token engine.
	ErrStoreUnavailable = errors.New("token store unavailable")
)
