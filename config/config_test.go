package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROVIDER", "stub")
	t.Setenv("EMBEDDER", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.RecallLimit != 3 {
		t.Errorf("recall limit = %d, want 3", cfg.RecallLimit)
	}
}

func TestValidateRequiresProviderKey(t *testing.T) {
	t.Setenv("PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("EMBEDDER", "mock")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing ANTHROPIC_API_KEY")
	}
}

func TestValidateRejectsUnknownEmbedder(t *testing.T) {
	t.Setenv("PROVIDER", "stub")
	t.Setenv("EMBEDDER", "banana")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown embedder")
	}
}
