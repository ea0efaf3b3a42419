package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"LADDERD_PORT", "LADDERD_METRICS_PORT", "LADDERD_ADMIN_TOKEN",
		"LADDERD_RATE_LIMIT", "LADDERD_DATABASE_URL", "LADDERD_NATS_URL",
		"LADDERD_LOG_LEVEL",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8700 {
		t.Errorf("expected port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected metrics port 8701, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.RateLimitPerMinute != 120 {
		t.Errorf("expected rate limit 120, got %d", cfg.Server.RateLimitPerMinute)
	}
	if cfg.Events.URL != "nats://localhost:4222" {
		t.Errorf("expected nats URL, got %s", cfg.Events.URL)
	}
	if cfg.Defaults.Mu != 1200 || cfg.Defaults.Sigma != 200 {
		t.Errorf("unexpected rating defaults: %+v", cfg.Defaults)
	}
	if cfg.Defaults.Beta != 100 || cfg.Defaults.Tau != 12 {
		t.Errorf("unexpected inference defaults: %+v", cfg.Defaults)
	}
	if cfg.Defaults.DrawProbability != 0 {
		t.Errorf("expected zero draw probability default, got %f", cfg.Defaults.DrawProbability)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected log format 'json', got '%s'", cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LADDERD_PORT", "9100")
	t.Setenv("LADDERD_ADMIN_TOKEN", "hunter2")
	t.Setenv("LADDERD_DATABASE_URL", "postgres://env/db")
	t.Setenv("LADDERD_RATE_LIMIT", "10")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Server.AdminToken != "hunter2" {
		t.Errorf("expected admin token from env, got %q", cfg.Server.AdminToken)
	}
	if cfg.Database.URL != "postgres://env/db" {
		t.Errorf("expected database URL from env, got %q", cfg.Database.URL)
	}
	if cfg.Server.RateLimitPerMinute != 10 {
		t.Errorf("expected rate limit 10, got %d", cfg.Server.RateLimitPerMinute)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ladderd.yaml")
	body := `
server:
  port: 9200
database:
  url: postgres://file/db
defaults:
  mu: 25
  sigma: 8.333
  beta: 4.167
  tau: 0.083
  draw_probability: 0.1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("expected port 9200, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("unset file values keep defaults, got metrics port %d", cfg.Server.MetricsPort)
	}
	if cfg.Database.URL != "postgres://file/db" {
		t.Errorf("expected database URL from file, got %q", cfg.Database.URL)
	}
	if cfg.Defaults.Mu != 25 {
		t.Errorf("expected mu 25, got %f", cfg.Defaults.Mu)
	}
	if cfg.Defaults.DrawProbability != 0.1 {
		t.Errorf("expected draw probability 0.1, got %f", cfg.Defaults.DrawProbability)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
