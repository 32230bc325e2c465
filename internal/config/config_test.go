package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "NODE_ENV", "APP_ENV", "STORE_DRIVER", "BOT_PROVIDER", "BOT_TIMEOUT", "BOT_HISTORY_LIMIT", "BOT_ALWAYS_RESPOND", "BOT_PERSONALITY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":4000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Server.Production() {
		t.Fatal("expected development environment by default")
	}
	if cfg.Store.Driver != StoreDriverSQLite {
		t.Fatalf("unexpected store driver: %s", cfg.Store.Driver)
	}
	if cfg.Bot.Provider != ProviderArk || cfg.Bot.Timeout != 30*time.Second {
		t.Fatalf("unexpected bot config: %+v", cfg.Bot)
	}
	if cfg.Bot.HistoryLimit != 10 || !cfg.Bot.AlwaysRespond || cfg.Bot.Personality != "friendly" {
		t.Fatalf("unexpected bot defaults: %+v", cfg.Bot)
	}
}

func TestLoadServerConfigAcceptsHostPort(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("NODE_ENV", "production")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if !cfg.Production() {
		t.Fatal("expected production")
	}
}

func TestLoadServerConfigRejectsGarbagePort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := loadServerConfig(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoadBotConfigParsesOverrides(t *testing.T) {
	t.Setenv("BOT_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("BOT_TIMEOUT", "5")
	t.Setenv("BOT_HISTORY_LIMIT", "0")
	t.Setenv("BOT_ALWAYS_RESPOND", "false")

	cfg, err := loadBotConfig()
	if err != nil {
		t.Fatalf("loadBotConfig err: %v", err)
	}
	if !cfg.Enabled() {
		t.Fatal("expected gemini provider to be enabled")
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.Timeout)
	}
	if cfg.HistoryLimit != 1 {
		t.Fatalf("history limit should clamp to 1, got %d", cfg.HistoryLimit)
	}
	if cfg.AlwaysRespond {
		t.Fatal("expected always-respond disabled")
	}
}

func TestLoadBotConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("BOT_PROVIDER", "groq")
	if _, err := loadBotConfig(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("X_TIMEOUT", "1500ms")
	got, err := parseDurationEnv("X_TIMEOUT", time.Second)
	if err != nil || got != 1500*time.Millisecond {
		t.Fatalf("parseDurationEnv = %s, %v", got, err)
	}

	t.Setenv("X_TIMEOUT", "-3")
	if _, err := parseDurationEnv("X_TIMEOUT", time.Second); err == nil {
		t.Fatal("expected error for negative duration")
	}
}
