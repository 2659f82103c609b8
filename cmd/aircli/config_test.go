package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aircli.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, "host: 192.168.1.40\nmodel: AC4236\nport: 5683\n")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Host != "192.168.1.40" || cfg.Model != "AC4236" || cfg.Port != 5683 {
		t.Errorf("loadConfig() = %+v", cfg)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") error: %v", err)
	}
	if cfg.Host != "" {
		t.Errorf("empty path should yield zero config, got %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("loadConfig(missing) expected error")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfigFile(t, "host: [broken\n")
	if _, err := loadConfig(path); err == nil {
		t.Error("loadConfig(bad yaml) expected error")
	}
}

func TestConfigOverride(t *testing.T) {
	cfg := &fileConfig{Host: "from-file", Model: "AC4236"}
	cfg.override("from-flag", "")
	if cfg.Host != "from-flag" {
		t.Errorf("Host = %q, want flag value", cfg.Host)
	}
	if cfg.Model != "AC4236" {
		t.Errorf("Model = %q, want file value kept", cfg.Model)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&fileConfig{}).validate(); err == nil {
		t.Error("validate() without host expected error")
	}
	if err := (&fileConfig{Host: "h", Port: 70000}).validate(); err == nil {
		t.Error("validate() with bad port expected error")
	}
	if err := (&fileConfig{Host: "h"}).validate(); err != nil {
		t.Errorf("validate() error: %v", err)
	}
}
