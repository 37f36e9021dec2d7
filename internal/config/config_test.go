package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "openrouter" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Retrieval.MaxDocuments != 10 {
		t.Errorf("max_documents = %d", cfg.Retrieval.MaxDocuments)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("llm:\n  provider: google\nretrieval:\n  max_documents: 5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CARMENTA_MAX_DOCUMENTS", "3")
	t.Setenv("CARMENTA_LLM_PROVIDER", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "google" {
		t.Errorf("provider = %q, want file value", cfg.LLM.Provider)
	}
	if cfg.Retrieval.MaxDocuments != 3 {
		t.Errorf("max_documents = %d, want env value 3", cfg.Retrieval.MaxDocuments)
	}
}

func TestEnvRejectsNonPositiveMaxDocuments(t *testing.T) {
	t.Setenv("CARMENTA_MAX_DOCUMENTS", "-1")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retrieval.MaxDocuments != 10 {
		t.Errorf("max_documents = %d, want default 10", cfg.Retrieval.MaxDocuments)
	}
}
