package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunLoggingConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[logging]
level = "debug"
format = "json"
ffmpeg = "warn"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := runLoggingConfig(path, false)
	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if cfg.Modules["ffmpeg"] != "warn" {
		t.Errorf("Modules[ffmpeg] = %q, want warn", cfg.Modules["ffmpeg"])
	}
}

func TestRunLoggingConfigJSONOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"text\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := runLoggingConfig(path, true)
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json with --log-json", cfg.Format)
	}
}

func TestRunLoggingConfigMissingFile(t *testing.T) {
	cfg := runLoggingConfig(filepath.Join(t.TempDir(), "missing.toml"), false)
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %q/%q, want info/text", cfg.Level, cfg.Format)
	}
}
