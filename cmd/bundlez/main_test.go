package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_PicksCodecByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "bundlez.yaml")
	yamlDoc := "version: \"1\"\nweb_root: web\ncache_dir: cache\n"
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	jsonPath := filepath.Join(dir, "bundlez.JSON")
	jsonDoc := `{"version": "2", "web_root": "web", "cache_dir": "cache"}`
	if err := os.WriteFile(jsonPath, []byte(jsonDoc), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := loadConfig(yamlPath)
	if err != nil {
		t.Fatalf("loadConfig(yaml) failed: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("expected version 1, got %s", cfg.Version)
	}

	cfg, err = loadConfig(jsonPath)
	if err != nil {
		t.Fatalf("loadConfig(json) failed: %v", err)
	}
	if cfg.Version != "2" {
		t.Errorf("expected version 2, got %s", cfg.Version)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
