package tokencore

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/exchangekit/tokencore/store"
	"github.com/exchangekit/tokencore/token"
)

// Config defines a public type used by tokencore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token   TokenConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by tokencore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	// Secret is the shared HMAC signing secret, minimum 32 bytes.
	Secret []byte
	// Issuer is stamped into every token and enforced on decode.
	Issuer string
	// AccessTTL bounds the access token lifetime.
	AccessTTL time.Duration
	// RefreshTTL bounds the refresh token lifetime; must not be shorter
	// than AccessTTL.
	RefreshTTL time.Duration
	// ClockSkew is the decode-side expiry leeway. Zero by default.
	ClockSkew time.Duration
	// ExpirySoonThreshold drives IsExpiringSoon and the pair's
	// NeedsRefreshSoon flag.
	ExpirySoonThreshold time.Duration
	// RefreshMaxUses selects the rotation policy. 0 or 1 means strict
	// single-use rotation; N > 1 lets one refresh token be redeemed N
	// times before it is consumed and rotated.
	RefreshMaxUses int
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by tokencore APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	// KeyPrefix namespaces every Redis key this engine writes.
	KeyPrefix string
	// OpTimeout bounds each store round-trip; expiry of the deadline
	// surfaces as ErrStoreUnavailable. Zero disables the per-op deadline.
	OpTimeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by tokencore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the request path when
	// the buffer is saturated; drops are counted.
	DropIfFull bool
}

// MetricsConfig defines a public type used by tokencore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	defaultAccessTTL     = time.Hour
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultSoonThreshold = 5 * time.Minute
	defaultOpTimeout     = 2 * time.Second
	maxClockSkew         = 2 * time.Minute
	maxRefreshUses       = 100
)

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:              "tokencore",
			AccessTTL:           defaultAccessTTL,
			RefreshTTL:          defaultRefreshTTL,
			ClockSkew:           0,
			ExpirySoonThreshold: defaultSoonThreshold,
			RefreshMaxUses:      1,
		},
		Store: StoreConfig{
			KeyPrefix: store.DefaultKeyPrefix,
			OpTimeout: defaultOpTimeout,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Token.Secret != nil {
		out.Token.Secret = make([]byte, len(cfg.Token.Secret))
		copy(out.Token.Secret, cfg.Token.Secret)
	}
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < token.MinSecretSize {
		return fmt.Errorf("%w: signing secret must be at least %d bytes", ErrConfigInvalid, token.MinSecretSize)
	}
	if c.Token.AccessTTL <= 0 {
		return fmt.Errorf("%w: access TTL must be positive", ErrConfigInvalid)
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return fmt.Errorf("%w: refresh TTL must not be shorter than access TTL", ErrConfigInvalid)
	}
	if c.Token.ClockSkew < 0 || c.Token.ClockSkew > maxClockSkew {
		return fmt.Errorf("%w: clock skew must be between 0 and %s", ErrConfigInvalid, maxClockSkew)
	}
	if c.Token.ExpirySoonThreshold < 0 || c.Token.ExpirySoonThreshold >= c.Token.AccessTTL {
		return fmt.Errorf("%w: expiry-soon threshold must be shorter than the access TTL", ErrConfigInvalid)
	}
	if c.Token.RefreshMaxUses < 0 || c.Token.RefreshMaxUses > maxRefreshUses {
		return fmt.Errorf("%w: refresh max uses out of range", ErrConfigInvalid)
	}
	if c.Store.OpTimeout < 0 {
		return fmt.Errorf("%w: store op timeout must not be negative", ErrConfigInvalid)
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return fmt.Errorf("%w: audit buffer size must not be negative", ErrConfigInvalid)
	}
	return nil
}

type envConfig struct {
	Secret              string        `env:"TOKENCORE_SECRET,required"`
	Issuer              string        `env:"TOKENCORE_ISSUER" envDefault:"tokencore"`
	AccessTTL           time.Duration `env:"TOKENCORE_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL          time.Duration `env:"TOKENCORE_REFRESH_TTL" envDefault:"168h"`
	ClockSkew           time.Duration `env:"TOKENCORE_CLOCK_SKEW" envDefault:"0"`
	ExpirySoonThreshold time.Duration `env:"TOKENCORE_EXPIRY_SOON" envDefault:"5m"`
	RefreshMaxUses      int           `env:"TOKENCORE_REFRESH_MAX_USES" envDefault:"1"`
	KeyPrefix           string        `env:"TOKENCORE_KEY_PREFIX" envDefault:"tc"`
	OpTimeout           time.Duration `env:"TOKENCORE_STORE_TIMEOUT" envDefault:"2s"`
	AuditEnabled        bool          `env:"TOKENCORE_AUDIT_ENABLED" envDefault:"false"`
	MetricsEnabled      bool          `env:"TOKENCORE_METRICS_ENABLED" envDefault:"true"`
}

// ConfigFromEnv loads a Config from TOKENCORE_* environment variables on top
// of the package defaults. The result is validated; a missing or short
// secret fails here rather than at first mint.
func ConfigFromEnv() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	cfg := defaultConfig()
	cfg.Token.Secret = []byte(raw.Secret)
	cfg.Token.Issuer = raw.Issuer
	cfg.Token.AccessTTL = raw.AccessTTL
	cfg.Token.RefreshTTL = raw.RefreshTTL
	cfg.Token.ClockSkew = raw.ClockSkew
	cfg.Token.ExpirySoonThreshold = raw.ExpirySoonThreshold
	cfg.Token.RefreshMaxUses = raw.RefreshMaxUses
	cfg.Store.KeyPrefix = raw.KeyPrefix
	cfg.Store.OpTimeout = raw.OpTimeout
	cfg.Audit.Enabled = raw.AuditEnabled
	cfg.Metrics.Enabled = raw.MetricsEnabled

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
