package store

import (
	"errors"
	"testing"

	"github.com/knadh/koanf/v2"

	"github.com/fclairamb/docmap/internal/apperrors"
)

func konfigWith(t *testing.T, values map[string]any) *koanf.Koanf {
	t.Helper()

	k := koanf.New(".")
	for key, value := range values {
		if err := k.Set(key, value); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	return k
}

func TestLoadRemoteConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := LoadRemoteConfig(konfigWith(t, nil))

	if cfg.Branch != "main" || cfg.User != "docmap" || cfg.Email != "docmap@localhost" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.IsCommitEnabled() {
		t.Error("commits are enabled by default")
	}
	if cfg.IsEnabled() || cfg.IsPushEnabled() {
		t.Error("remote must be disabled without a URL")
	}
	if cfg.EffectiveStorageMode() != StorageModeLocal {
		t.Errorf("mode = %s", cfg.EffectiveStorageMode())
	}
}

func TestLoadRemoteConfig_Values(t *testing.T) {
	t.Parallel()

	cfg := LoadRemoteConfig(konfigWith(t, map[string]any{
		"git_url":      "https://git.example.com/docs.git",
		"git_pass":     "token",
		"git_branch":   "master",
		"git_push_ref": "refs/for/master",
		"commit":       "false",
		"push":         "true",
	}))

	if cfg.IsCommitEnabled() {
		t.Error("commit=false not honored")
	}
	if !cfg.IsPushEnabled() {
		t.Error("push=true not honored")
	}
	if got := cfg.PushRefSpec().String(); got != "refs/heads/master:refs/for/master" {
		t.Errorf("PushRefSpec() = %s", got)
	}
	if cfg.EffectiveStorageMode() != StorageModeRemote {
		t.Errorf("mode = %s", cfg.EffectiveStorageMode())
	}
}

func TestRemoteConfig_StorageModeLocalWins(t *testing.T) {
	t.Parallel()

	cfg := LoadRemoteConfig(konfigWith(t, map[string]any{
		"storage": "LOCAL",
		"git_url": "git@example.com:docs.git",
	}))

	if cfg.IsEnabled() || cfg.IsPushEnabled() {
		t.Error("local storage must disable remote operations")
	}
}

func TestRemoteConfig_GetAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *RemoteConfig
		wantErr error
	}{
		{name: "no url", cfg: &RemoteConfig{}, wantErr: apperrors.ErrRemoteNotConfigured},
		{name: "https without password", cfg: &RemoteConfig{URL: "https://x/y.git"}, wantErr: apperrors.ErrHTTPSPasswordRequired},
		{name: "https with password", cfg: &RemoteConfig{URL: "https://x/y.git", Password: "p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			auth, err := tt.cfg.GetAuth()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetAuth() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || auth == nil {
				t.Errorf("GetAuth() = %v, %v", auth, err)
			}
		})
	}
}

func TestRemoteConfig_IsSSH(t *testing.T) {
	t.Parallel()

	for url, want := range map[string]bool{
		"git@github.com:org/docs.git": true,
		"ssh://git@host/docs.git":     true,
		"https://github.com/org/docs": false,
		"":                            false,
	} {
		if got := (&RemoteConfig{URL: url}).IsSSH(); got != want {
			t.Errorf("IsSSH(%q) = %v, want %v", url, got, want)
		}
	}
}
