package tokencore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/exchangekit/tokencore/store"
	"github.com/exchangekit/tokencore/token"
)

// Builder defines a public type used by tokencore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret sets the signing secret on top of the current config, for
// callers that otherwise run on defaults.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = secret
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and assembles the engine. A builder is
// single-use; construction performs no I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keys, err := token.NewKeyring(cfg.Token.Secret)
	if err != nil {
		return nil, errors.Join(ErrConfigInvalid, err)
	}

	codec, err := token.NewCodec(keys, token.Config{
		Issuer: cfg.Token.Issuer,
		Leeway: cfg.Token.ClockSkew,
	})
	if err != nil {
		return nil, errors.Join(ErrConfigInvalid, err)
	}

	return &Engine{
		config:  cfg,
		codec:   codec,
		tokens:  store.New(b.redis, cfg.Store.KeyPrefix),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		now:     time.Now,
	}, nil
}
