package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("expected defaults to be valid, got: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidate_EditIntervalTooLow(t *testing.T) {
	cfg := Defaults()
	cfg.Chat.EditIntervalMS = 100
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for editIntervalMs below 500")
	}

	cfg.Chat.EditIntervalMS = 500
	if err := Validate(cfg); err != nil {
		t.Fatalf("editIntervalMs=500 should be valid: %v", err)
	}
}

func TestValidate_UnknownDefaultBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Chat.DefaultBackend = "nope"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown default backend")
	}
}

func TestValidate_BadBackendKind(t *testing.T) {
	cfg := Defaults()
	cfg.Backends["weird"] = BackendConfig{Enabled: true, Kind: "weird"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown backend kind")
	}
}

func TestValidate_OpenAIRequiresAPIBase(t *testing.T) {
	cfg := Defaults()
	cfg.Backends["oai"] = BackendConfig{Enabled: true, Kind: "openai"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for openai backend without apiBase")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Defaults()
	cfg.Telegram.Token = "123:abc"
	cfg.General.CreatorID = 42
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Telegram.Token != "123:abc" || loaded.General.CreatorID != 42 {
		t.Fatalf("round trip lost values: %+v", loaded)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "tok-from-env")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"telegram": {"token": "${TEST_BOT_TOKEN}"},
		"general": {"botPrefix": "${MISSING_VAR:-fallback}"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "tok-from-env" {
		t.Fatalf("expected env expansion, got %q", cfg.Telegram.Token)
	}
	if cfg.General.BotPrefix != "fallback" {
		t.Fatalf("expected default fallback, got %q", cfg.General.BotPrefix)
	}
}

func TestExpandEnvVars_KeepsUnknown(t *testing.T) {
	got := ExpandEnvVars("value is ${DEFINITELY_NOT_SET_XYZ}")
	if got != "value is ${DEFINITELY_NOT_SET_XYZ}" {
		t.Fatalf("expected unknown var kept verbatim, got %q", got)
	}
}

// --- FlexInt64Set ---

func TestFlexInt64Set_MixedTypes(t *testing.T) {
	var s FlexInt64Set
	if err := json.Unmarshal([]byte(`[123, "456", -789]`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, id := range []int64{123, 456, -789} {
		if !s.Contains(id) {
			t.Fatalf("expected set to contain %d", id)
		}
	}
	if s.Contains(999) {
		t.Fatal("unexpected member")
	}
}

func TestFlexInt64Set_BadValue(t *testing.T) {
	var s FlexInt64Set
	if err := json.Unmarshal([]byte(`["abc"]`), &s); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

// --- Accessors ---

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	val, err := GetByPath(cfg, "chat.defaultBackend")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "ollama" {
		t.Fatalf("expected 'ollama', got %v", val)
	}

	if _, err := GetByPath(cfg, "chat.noSuchKey"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "chat.editIntervalMs", "6000"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Chat.EditIntervalMS != 6000 {
		t.Fatalf("expected 6000, got %d", cfg.Chat.EditIntervalMS)
	}

	if err := SetByPath(cfg, "general.onlyForCreator", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !cfg.General.OnlyForCreator {
		t.Fatal("expected bool coercion")
	}
}

func TestSanitize(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "1234567890:secret-token"
	bc := cfg.Backends["ollama"]
	bc.APIKey = "sk-long-api-key-value"
	cfg.Backends["ollama"] = bc

	clean := Sanitize(cfg)
	if clean.Telegram.Token == cfg.Telegram.Token {
		t.Fatal("expected token to be masked")
	}
	if clean.Backends["ollama"].APIKey == "sk-long-api-key-value" {
		t.Fatal("expected api key to be masked")
	}

	// original untouched
	if cfg.Telegram.Token != "1234567890:secret-token" {
		t.Fatal("sanitize must not mutate the original")
	}
}
