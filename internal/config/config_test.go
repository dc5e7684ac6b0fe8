package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
instance:
  id: test-trader
  account: "12345678-01"
  watchlist: ["005930", "000660"]
api:
  app_key: test-key
  app_secret: test-secret
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: testpass
`

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-trader
  account: "12345678-01"
api:
  rest_url: https://mockapi.kiwoom.com
  app_key: test-key
  app_secret: test-secret
database:
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-trader" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-trader")
	}
	if cfg.Instance.Account != "12345678-01" {
		t.Errorf("Instance.Account = %q, want %q", cfg.Instance.Account, "12345678-01")
	}
	if cfg.API.RestURL != "https://mockapi.kiwoom.com" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://mockapi.kiwoom.com")
	}
	if cfg.Database.Timescale.Host != "localhost" {
		t.Errorf("Database.Timescale.Host = %q, want %q", cfg.Database.Timescale.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_APP_SECRET", "secret123")

	yaml := `
instance:
  id: test-trader
  account: "12345678-01"
api:
  app_key: test-key
  app_secret: ${TEST_APP_SECRET}
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.AppSecret != "secret123" {
		t.Errorf("API.AppSecret = %q, want %q", cfg.API.AppSecret, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.RateLimit != DefaultRateLimit {
		t.Errorf("API.RateLimit = %v, want default %v", cfg.API.RateLimit, DefaultRateLimit)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Risk.ConfidenceLevel != DefaultConfidenceLevel {
		t.Errorf("Risk.ConfidenceLevel = %v, want default %v", cfg.Risk.ConfidenceLevel, DefaultConfidenceLevel)
	}
	if cfg.Risk.LookbackDays != DefaultLookbackDays {
		t.Errorf("Risk.LookbackDays = %d, want default %d", cfg.Risk.LookbackDays, DefaultLookbackDays)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		path := writeTempFile(t, validYAML)
		cfg, err := LoadWithDefaults(path)
		if err != nil {
			t.Fatalf("LoadWithDefaults failed: %v", err)
		}
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		cfg := base()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("missing instance id", func(t *testing.T) {
		cfg := base()
		cfg.Instance.ID = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("missing account", func(t *testing.T) {
		cfg := base()
		cfg.Instance.Account = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("missing app key", func(t *testing.T) {
		cfg := base()
		cfg.API.AppKey = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("missing db host", func(t *testing.T) {
		cfg := base()
		cfg.Database.Timescale.Host = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("min conns exceed max conns", func(t *testing.T) {
		cfg := base()
		cfg.Database.Timescale.MinConns = 20
		cfg.Database.Timescale.MaxConns = 10
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("confidence level out of range", func(t *testing.T) {
		cfg := base()
		cfg.Risk.ConfidenceLevel = 1.5
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("invalid metrics port", func(t *testing.T) {
		cfg := base()
		cfg.Metrics.Port = 70000
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() = nil, want error for missing file")
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
