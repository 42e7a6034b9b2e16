package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Session.MinTurns != 4 || cfg.Session.MaxTurns != 6 {
		t.Fatalf("expected default turn bounds 4/6, got %d/%d", cfg.Session.MinTurns, cfg.Session.MaxTurns)
	}
	if cfg.Session.Speed != 0.75 {
		t.Fatalf("expected default speed 0.75, got %v", cfg.Session.Speed)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEEPSAKE_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("KEEPSAKE_BUS_USERNAME", "alice")
	t.Setenv("KEEPSAKE_BUS_PASSWORD", "secret")
	t.Setenv("KEEPSAKE_SESSION_MIN_TURNS", "2")
	t.Setenv("KEEPSAKE_SESSION_MAX_TURNS", "9")
	t.Setenv("KEEPSAKE_SESSION_VOICE", "alloy")
	t.Setenv("KEEPSAKE_SESSION_SPEED", "1.0")
	t.Setenv("KEEPSAKE_DECK_PATH", "./alt/photos.json")
	t.Setenv("KEEPSAKE_LLM_MODE", "ollama")
	t.Setenv("KEEPSAKE_LLM_TEMPERATURE", "0.4")
	t.Setenv("KEEPSAKE_EVENT_STORE_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Session.MinTurns != 2 || cfg.Session.MaxTurns != 9 {
		t.Fatalf("expected turn bound overrides, got %d/%d", cfg.Session.MinTurns, cfg.Session.MaxTurns)
	}
	if cfg.Session.Voice != "alloy" {
		t.Fatalf("expected voice override, got %q", cfg.Session.Voice)
	}
	if cfg.Session.Speed != 1.0 {
		t.Fatalf("expected speed override, got %v", cfg.Session.Speed)
	}
	if cfg.Deck.Path != "./alt/photos.json" {
		t.Fatalf("expected deck path override, got %q", cfg.Deck.Path)
	}
	if cfg.LLM.Mode != "ollama" {
		t.Fatalf("expected llm mode override, got %q", cfg.LLM.Mode)
	}
	if cfg.LLM.Temperature != 0.4 {
		t.Fatalf("expected temperature override, got %v", cfg.LLM.Temperature)
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected retention mode override")
	}
}

func TestValidateRejectsBadTurnBounds(t *testing.T) {
	t.Setenv("KEEPSAKE_SESSION_MIN_TURNS", "5")
	t.Setenv("KEEPSAKE_SESSION_MAX_TURNS", "3")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when max_turns < min_turns")
	}
}

func TestValidateRejectsUnknownModes(t *testing.T) {
	t.Setenv("KEEPSAKE_LLM_MODE", "carrier-pigeon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown llm mode")
	}
}
