package tokencore

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/exchangekit/tokencore/store"
	"github.com/exchangekit/tokencore/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a mutable test clock shared between the engine and its codec
// so expiry can be driven without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func lifecycleTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Secret = testSecret
	cfg.Metrics.Enabled = true
	return cfg
}

// newLifecycleEngine assembles an engine directly on top of miniredis with a
// controllable clock. The returned cleanup closes everything.
func newLifecycleEngine(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis, *fakeClock, func()) {
	t.Helper()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	mr, rdb := newTestRedis(t)
	clock := newFakeClock()

	keys, err := token.NewKeyring(cfg.Token.Secret)
	if err != nil {
		t.Fatalf("NewKeyring failed: %v", err)
	}
	codec, err := token.NewCodec(keys, token.Config{
		Issuer:   cfg.Token.Issuer,
		Leeway:   cfg.Token.ClockSkew,
		TimeFunc: clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	engine := &Engine{
		config:  cfg,
		codec:   codec,
		tokens:  store.New(rdb, cfg.Store.KeyPrefix),
		audit:   newAuditDispatcher(cfg.Audit, nil),
		metrics: NewMetrics(cfg.Metrics),
		now:     clock.Now,
	}

	done := func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
	return engine, mr, clock, done
}

func testPrincipal() Principal {
	return Principal{
		ID:          "7",
		Username:    "alice",
		Roles:       []string{"admin"},
		Permissions: []string{"orders:write"},
	}
}
