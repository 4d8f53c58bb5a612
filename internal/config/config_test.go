package config

import (
	"strings"
	"testing"
)

// clearEnv blanks every config env var so ambient environment never leaks
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINUTED_LLM_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 4001 {
		t.Errorf("Server.MCPPort = %d, want 4001", cfg.Server.MCPPort)
	}
	if cfg.Transcriber.URL != "ws://localhost:8089" {
		t.Errorf("Transcriber.URL = %q", cfg.Transcriber.URL)
	}
	if cfg.Transcriber.FrameBytes != 64<<10 {
		t.Errorf("Transcriber.FrameBytes = %d, want %d", cfg.Transcriber.FrameBytes, 64<<10)
	}
	if cfg.LLM.BaseURL != "https://api.deepseek.com" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.DefaultModel != "deepseek-chat" {
		t.Errorf("LLM.DefaultModel = %q", cfg.LLM.DefaultModel)
	}
	if cfg.Synthesis.BlockChars != 2000 {
		t.Errorf("Synthesis.BlockChars = %d, want 2000", cfg.Synthesis.BlockChars)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINUTED_LLM_API_KEY", "env-key")
	t.Setenv("MINUTED_SERVER_PORT", "5000")
	t.Setenv("MINUTED_TRANSCRIBER_URL", "wss://transcribe.example.com")
	t.Setenv("MINUTED_SYNTHESIS_BLOCK_CHARS", "512")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want env-key", cfg.LLM.APIKey)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Transcriber.URL != "wss://transcribe.example.com" {
		t.Errorf("Transcriber.URL = %q", cfg.Transcriber.URL)
	}
	if cfg.Synthesis.BlockChars != 512 {
		t.Errorf("Synthesis.BlockChars = %d, want 512", cfg.Synthesis.BlockChars)
	}
}

func TestBadIntKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINUTED_LLM_API_KEY", "k")
	t.Setenv("MINUTED_SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want the 4000 default", cfg.Server.Port)
	}
}

func TestMissingRequiredField(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q, want it to mention missing required config", err)
	}
}

func TestInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINUTED_LLM_API_KEY", "k")
	t.Setenv("MINUTED_SYNTHESIS_BLOCK_CHARS", "-5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-positive block chars, got nil")
	}
}
