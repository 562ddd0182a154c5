package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sprintline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default("http://localhost:8000")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Remote.BaseURL != "http://localhost:8000" {
		t.Fatalf("base url not templated: %s", cfg.Remote.BaseURL)
	}
	if cfg.Defaults.TaskCategory != "FE" || cfg.Defaults.SprintDuration != 14 {
		t.Fatalf("board defaults wrong: %+v", cfg.Defaults)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Fatalf("poll interval: %v", cfg.PollInterval())
	}
	if cfg.RemoteTimeout() != 15*time.Second {
		t.Fatalf("remote timeout: %v", cfg.RemoteTimeout())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing base url", "remote:\n  token: x\n"},
		{"relative base url", "remote:\n  base_url: not-a-url\n"},
		{"bad timeout", "remote:\n  base_url: http://x\n  timeout: soon\n"},
		{"sub-second poll", "remote:\n  base_url: http://x\npoll:\n  interval: 100ms\n"},
		{"odd sprint duration", "remote:\n  base_url: http://x\ndefaults:\n  sprint_duration: 10\n"},
	}
	for _, tc := range cases {
		if _, err := config.FromYAML([]byte(tc.yaml)); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing config should be nil, nil; got %v, %v", cfg, err)
	}

	path := config.Path(dir)
	if filepath.Base(path) != "sprintline.yml" {
		t.Fatalf("unexpected config name: %s", path)
	}
	if err := os.WriteFile(path, []byte(config.GenerateDefault("http://x")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = config.LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Remote.BaseURL != "http://x" {
		t.Fatalf("base url: %s", cfg.Remote.BaseURL)
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	if err := os.WriteFile(path, []byte(config.GenerateDefault("http://x")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if cfg.Remote.BaseURL != "http://x" {
		t.Fatalf("base url: %s", cfg.Remote.BaseURL)
	}

	if _, err := config.FromFile(filepath.Join(dir, "missing.yml")); !os.IsNotExist(err) {
		t.Fatalf("missing file must surface the os error, got %v", err)
	}
}

func TestLoadMissingMentionsInit(t *testing.T) {
	_, err := config.Load(t.TempDir())
	if err == nil {
		t.Fatalf("expected error for missing config")
	}
}
