package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(WithEnviron(environ("HOME=/root", "PATH=/bin")))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.ContentPath(); got != "articles" {
		t.Errorf("ContentPath() = %q", got)
	}
	if got := cfg.MappingPath(); got != "mappings" {
		t.Errorf("MappingPath() = %q", got)
	}
	if got := cfg.LogFormat(); got != "text" {
		t.Errorf("LogFormat() = %q", got)
	}
	if got := cfg.WatchDebounce(); got != DefaultWatchDebounce {
		t.Errorf("WatchDebounce() = %v", got)
	}
	if cfg.Koanf().Exists("home") {
		t.Error("variables without the prefix must be ignored")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Parallel()

	cfg, err := Load(WithEnviron(environ(
		"DOCMAP_REPO_PATH=/srv/docs",
		"DOCMAP_CONTENT_DIR=kb",
		"DOCMAP_MAPPING_DIR=/var/lib/docmap",
		"DOCMAP_LOG_FORMAT=JSON",
		"DOCMAP_WATCH_DEBOUNCE=500ms",
		"DOCMAP_WEBHOOK_PORT=9090",
		"DOCMAP_GIT_URL=git@example.com:docs.git",
	)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"content path", cfg.ContentPath(), filepath.Join("/srv/docs", "kb")},
		{"absolute mapping path", cfg.MappingPath(), "/var/lib/docmap"},
		{"log format", cfg.LogFormat(), "json"},
		{"debounce", cfg.WatchDebounce(), 500 * time.Millisecond},
		{"int", cfg.Int("webhook_port", 8080), 9090},
		{"raw key", cfg.Koanf().String("git_url"), "git@example.com:docs.git"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_FileOverlaidByEnvironment(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "docmap.yaml")
	content := "content_dir: docs\nmapping_dir: maps\nfreshdesk_api_url: https://acme.freshdesk.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithFile(path), WithEnviron(environ("DOCMAP_MAPPING_DIR=override")))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.ContentPath(); got != "docs" {
		t.Errorf("ContentPath() = %q", got)
	}
	if got := cfg.MappingPath(); got != "override" {
		t.Errorf("MappingPath() = %q, environment must win", got)
	}
	if got := cfg.String("freshdesk_api_url", ""); got != "https://acme.freshdesk.com" {
		t.Errorf("freshdesk_api_url = %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml")), WithEnviron(environ())); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestConfig_Set(t *testing.T) {
	t.Parallel()

	cfg, err := Load(WithEnviron(environ("DOCMAP_CONTENT_DIR=kb")))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Set("content_dir", "flag")

	if got := cfg.ContentPath(); got != "flag" {
		t.Errorf("ContentPath() = %q", got)
	}
}
