package tokencore

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "secret too short",
			mutate: func(c *Config) {
				c.Token.Secret = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh shorter than access",
			mutate: func(c *Config) {
				c.Token.RefreshTTL = 30 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "clock skew valid",
			mutate: func(c *Config) {
				c.Token.ClockSkew = 30 * time.Second
			},
			wantValid: true,
		},
		{
			name: "clock skew oversized",
			mutate: func(c *Config) {
				c.Token.ClockSkew = 10 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "clock skew negative",
			mutate: func(c *Config) {
				c.Token.ClockSkew = -time.Second
			},
			wantValid: false,
		},
		{
			name: "threshold wider than access ttl",
			mutate: func(c *Config) {
				c.Token.ExpirySoonThreshold = 2 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "use count valid",
			mutate: func(c *Config) {
				c.Token.RefreshMaxUses = 5
			},
			wantValid: true,
		},
		{
			name: "use count out of range",
			mutate: func(c *Config) {
				c.Token.RefreshMaxUses = 1000
			},
			wantValid: false,
		},
		{
			name: "negative store timeout",
			mutate: func(c *Config) {
				c.Store.OpTimeout = -time.Second
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Token.Secret = testSecret
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid {
				if err == nil {
					t.Fatal("expected validation failure")
				}
				if !errors.Is(err, ErrConfigInvalid) {
					t.Fatalf("expected ErrConfigInvalid, got %v", err)
				}
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TOKENCORE_SECRET", string(testSecret))
	t.Setenv("TOKENCORE_ISSUER", "exchange")
	t.Setenv("TOKENCORE_ACCESS_TTL", "30m")
	t.Setenv("TOKENCORE_REFRESH_TTL", "72h")
	t.Setenv("TOKENCORE_EXPIRY_SOON", "2m")
	t.Setenv("TOKENCORE_KEY_PREFIX", "ex")
	t.Setenv("TOKENCORE_REFRESH_MAX_USES", "3")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if cfg.Token.Issuer != "exchange" {
		t.Fatalf("unexpected issuer %q", cfg.Token.Issuer)
	}
	if cfg.Token.AccessTTL != 30*time.Minute {
		t.Fatalf("unexpected access TTL %v", cfg.Token.AccessTTL)
	}
	if cfg.Token.RefreshTTL != 72*time.Hour {
		t.Fatalf("unexpected refresh TTL %v", cfg.Token.RefreshTTL)
	}
	if cfg.Token.ExpirySoonThreshold != 2*time.Minute {
		t.Fatalf("unexpected threshold %v", cfg.Token.ExpirySoonThreshold)
	}
	if cfg.Store.KeyPrefix != "ex" {
		t.Fatalf("unexpected key prefix %q", cfg.Store.KeyPrefix)
	}
	if cfg.Token.RefreshMaxUses != 3 {
		t.Fatalf("unexpected max uses %d", cfg.Token.RefreshMaxUses)
	}
}

func TestConfigFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("TOKENCORE_SECRET", "")

	if _, err := ConfigFromEnv(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestCloneConfigCopiesSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Token.Secret = append([]byte(nil), testSecret...)

	clone := cloneConfig(cfg)
	cfg.Token.Secret[0] ^= 0xFF

	if clone.Token.Secret[0] == cfg.Token.Secret[0] {
		t.Fatal("clone shares secret memory with the original")
	}
}
