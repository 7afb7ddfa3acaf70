package config

import "testing"

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.DataDir != "data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.MirrorDB != "" {
		t.Fatalf("expected mirror disabled by default, got %q", cfg.MirrorDB)
	}
}

func TestLoadConfigFromEnv_PortOverride(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"PORT": "1234"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
}

func TestLoadConfigFromEnv_InvalidPort(t *testing.T) {
	if _, err := LoadConfigFromEnv(mapEnv{"PORT": "nope"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := LoadConfigFromEnv(mapEnv{"PORT": "70000"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_MirrorAndDataDir(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"DATA_DIR": "/tmp/x", "MIRROR_DB": "/tmp/mirror.db"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.DataDir != "/tmp/x" {
		t.Fatalf("expected data dir override, got %q", cfg.DataDir)
	}
	if cfg.MirrorDB != "/tmp/mirror.db" {
		t.Fatalf("expected mirror db override, got %q", cfg.MirrorDB)
	}
}
