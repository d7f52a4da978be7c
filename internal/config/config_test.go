package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AllowedOrigin != DefaultOrigin {
		t.Fatalf("AllowedOrigin = %q", cfg.AllowedOrigin)
	}
	if cfg.CDPURL() != "http://127.0.0.1:9220" {
		t.Fatalf("CDPURL() = %q", cfg.CDPURL())
	}
	if !cfg.CacheStaleGuard || cfg.CacheBackend != "file" {
		t.Fatalf("cache defaults = %q stale=%v", cfg.CacheBackend, cfg.CacheStaleGuard)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "casewatch.yaml")
	yamlBody := "allowed_origin: https://file.example/\ncache_backend: sqlite\neval_timeout_ms: 200\nport_candidates:\n  - 127.0.0.1:9001\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CASEWATCH_CONFIG_FILE", path)
	t.Setenv("CACHE_BACKEND", "MEMORY")
	t.Setenv("CACHE_STALE_GUARD", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AllowedOrigin != "https://file.example/" {
		t.Fatalf("AllowedOrigin = %q, want file value", cfg.AllowedOrigin)
	}
	if cfg.CacheBackend != "memory" {
		t.Fatalf("CacheBackend = %q, want env value", cfg.CacheBackend)
	}
	if cfg.CacheStaleGuard {
		t.Fatal("CacheStaleGuard = true, want env false")
	}
	if cfg.EvalTimeoutMS != 1000 {
		t.Fatalf("EvalTimeoutMS = %d, want clamp to 1000", cfg.EvalTimeoutMS)
	}
	if len(cfg.PortCandidates) != 1 || cfg.PortCandidates[0] != "127.0.0.1:9001" {
		t.Fatalf("PortCandidates = %v", cfg.PortCandidates)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CACHE_BACKEND", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want unknown backend error")
	}
}

func TestWithLogFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.WithLogFile("logs/casepopup.log").LogFile; got != "logs/casepopup.log" {
		t.Fatalf("LogFile = %q", got)
	}

	t.Setenv("CASEWATCH_LOG_FILE", "custom.log")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.WithLogFile("logs/casepopup.log").LogFile; got != "custom.log" {
		t.Fatalf("LogFile = %q, want explicit value kept", got)
	}
}
