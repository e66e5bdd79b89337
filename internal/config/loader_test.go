package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadWritesDefaultOnFirstRun(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "ircline.yaml")

	cfg, resolved, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	def := Default()
	if cfg.Server.Host != def.Server.Host || cfg.Server.Port != def.Server.Port {
		t.Fatalf("got server %s:%d, want defaults %s:%d",
			cfg.Server.Host, cfg.Server.Port, def.Server.Host, def.Server.Port)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "ircline.yaml")
	content := []byte("server:\n  host: irc.example.org\n  port: 6667\n  tls: false\nnickname: alice\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "irc.example.org" || cfg.Server.Port != 6667 || cfg.Server.TLS {
		t.Fatalf("server config not applied: %+v", cfg.Server)
	}
	if cfg.Nickname != "alice" {
		t.Fatalf("nickname = %q, want alice", cfg.Nickname)
	}
	if cfg.LogLevel != Default().LogLevel {
		t.Fatalf("log level default lost: %q", cfg.LogLevel)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "ircline.yaml")
	if err := os.WriteFile(path, []byte("nickname: alice\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("IRCLINE_NICKNAME", "eve")

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Nickname != "eve" {
		t.Fatalf("nickname = %q, want env override eve", cfg.Nickname)
	}
}
