package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/modcheck/internal/provider"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Scan.Workers)
	}
	if cfg.Providers.Retries != 3 {
		t.Errorf("retries = %d, want 3", cfg.Providers.Retries)
	}
	if cfg.Cache.TTL != 7*24*time.Hour {
		t.Errorf("ttl = %s", cfg.Cache.TTL)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
cache:
  path: /tmp/mc.db
  ttl: 12h
providers:
  modrinth_url: http://localhost:9000/
  timeout: 3s
  retries: 5
  curseforge_rate: 0.5
scan:
  workers: 8
logging:
  level: debug
  format: text
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Path != "/tmp/mc.db" || cfg.Cache.TTL != 12*time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Providers.ModrinthURL != "http://localhost:9000" {
		t.Errorf("modrinth url = %q, want trailing slash trimmed", cfg.Providers.ModrinthURL)
	}
	if cfg.Scan.Workers != 8 || cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("cfg = %+v", cfg)
	}

	p := cfg.RetryPolicy()
	if p.Attempts != 5 || p.Timeout != 3*time.Second {
		t.Errorf("policy = %+v", p)
	}
	limits := cfg.RateLimits()
	if limits[provider.NameCurseForge] != 0.5 {
		t.Errorf("limits = %v", limits)
	}
	if _, ok := limits[provider.NameModrinth]; ok {
		t.Error("unset rate should not be overridden")
	}
}

func TestLoadBrokenFileFallsBack(t *testing.T) {
	path := writeConfig(t, "scan: [workers\n")
	cfg, err := Load(path)
	if !errors.Is(err, ErrConfigLoad) {
		t.Fatalf("err = %v, want ErrConfigLoad", err)
	}
	if cfg == nil {
		t.Fatal("expected a usable config alongside the error")
	}
	if cfg.Scan.Workers != 4 {
		t.Errorf("workers = %d, want default 4", cfg.Scan.Workers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "scan:\n  workers: 2\n")
	t.Setenv("MODCHECK_WORKERS", "6")
	t.Setenv("MODCHECK_TIMEOUT", "2s")
	t.Setenv("MODCHECK_CF_API_KEY", "env-key")
	t.Setenv("MODCHECK_NO_CACHE", "true")
	t.Setenv("MODCHECK_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Workers != 6 {
		t.Errorf("workers = %d, want env value 6", cfg.Scan.Workers)
	}
	if cfg.Providers.Timeout != 2*time.Second {
		t.Errorf("timeout = %s", cfg.Providers.Timeout)
	}
	if cfg.Providers.CurseForgeAPIKey != "env-key" || !cfg.Cache.Disabled || cfg.Logging.Level != "error" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv("MODCHECK_RETRIES", "many")
	cfg, err := Load("")
	if !errors.Is(err, ErrConfigLoad) {
		t.Fatalf("err = %v, want ErrConfigLoad", err)
	}
	if cfg.Providers.Retries != 3 {
		t.Errorf("retries = %d, want default", cfg.Providers.Retries)
	}
}

func TestValidateResetsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
scan:
  workers: 0
providers:
  retries: 99
logging:
  level: trace
  format: xml
`)
	cfg, err := Load(path)
	if !errors.Is(err, ErrConfigLoad) {
		t.Fatalf("err = %v, want ErrConfigLoad", err)
	}
	def := Default()
	if cfg.Scan.Workers != def.Scan.Workers || cfg.Providers.Retries != def.Providers.Retries {
		t.Errorf("values not reset: %+v", cfg)
	}
	if cfg.Logging.Level != def.Logging.Level || cfg.Logging.Format != def.Logging.Format {
		t.Errorf("logging not reset: %+v", cfg.Logging)
	}
}

func TestDefaultPathEnv(t *testing.T) {
	t.Setenv("MODCHECK_CONFIG_PATH", "/etc/modcheck.yaml")
	if got := DefaultPath(); got != "/etc/modcheck.yaml" {
		t.Errorf("DefaultPath = %q", got)
	}
}
