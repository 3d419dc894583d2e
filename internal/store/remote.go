package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/knadh/koanf/v2"

	"github.com/fclairamb/docmap/internal/apperrors"
)

// StorageMode defines the storage mode for git operations.
type StorageMode string

const (
	// StorageModeAuto automatically detects the storage mode based on configuration.
	StorageModeAuto StorageMode = ""
	// StorageModeLocal uses local-only storage (no remote operations).
	StorageModeLocal StorageMode = "local"
	// StorageModeRemote uses remote storage (pull/push enabled).
	StorageModeRemote StorageMode = "remote"

	defaultBranch = "main"
	defaultUser   = "docmap"
	defaultEmail  = "docmap@localhost"
)

// RemoteConfig holds configuration for remote git operations.
type RemoteConfig struct {
	Storage  StorageMode // DOCMAP_STORAGE
	URL      string      // DOCMAP_GIT_URL
	Password string      // DOCMAP_GIT_PASS, HTTPS token
	Branch   string      // DOCMAP_GIT_BRANCH
	User     string      // DOCMAP_GIT_USER, commit author
	Email    string      // DOCMAP_GIT_EMAIL
	PushRef  string      // DOCMAP_GIT_PUSH_REF, e.g. refs/for/main for review-based workflows
	Commit   bool        // DOCMAP_COMMIT
	Push     *bool       // DOCMAP_PUSH, nil means auto-detect
}

// LoadRemoteConfig reads the git settings from the loaded configuration.
func LoadRemoteConfig(k *koanf.Koanf) *RemoteConfig {
	cfg := &RemoteConfig{
		Storage:  StorageMode(strings.ToLower(k.String("storage"))),
		URL:      k.String("git_url"),
		Password: k.String("git_pass"),
		Branch:   k.String("git_branch"),
		User:     k.String("git_user"),
		Email:    k.String("git_email"),
		PushRef:  k.String("git_push_ref"),
		Commit:   true,
	}

	if cfg.Branch == "" {
		cfg.Branch = defaultBranch
	}
	if cfg.User == "" {
		cfg.User = defaultUser
	}
	if cfg.Email == "" {
		cfg.Email = defaultEmail
	}

	if k.Exists("commit") {
		cfg.Commit = k.Bool("commit")
	}
	if k.Exists("push") {
		push := k.Bool("push")
		cfg.Push = &push
	}

	return cfg
}

// EffectiveStorageMode returns the effective storage mode after auto-detection.
// If Storage is set explicitly, it returns that value.
// Otherwise, it returns "remote" if URL is configured, or "local" if not.
func (c *RemoteConfig) EffectiveStorageMode() StorageMode {
	if c == nil {
		return StorageModeLocal
	}
	if c.Storage == StorageModeLocal || c.Storage == StorageModeRemote {
		return c.Storage
	}
	if c.URL != "" {
		return StorageModeRemote
	}
	return StorageModeLocal
}

// IsEnabled returns true if remote operations should be used.
func (c *RemoteConfig) IsEnabled() bool {
	if c == nil || c.Storage == StorageModeLocal {
		return false
	}
	return c.URL != ""
}

// IsSSH returns true if the URL is an SSH URL.
func (c *RemoteConfig) IsSSH() bool {
	if c == nil || c.URL == "" {
		return false
	}
	return strings.HasPrefix(c.URL, "git@") || strings.HasPrefix(c.URL, "ssh://")
}

// IsCommitEnabled returns true if passes commit their changes.
func (c *RemoteConfig) IsCommitEnabled() bool {
	return c != nil && c.Commit
}

// IsPushEnabled returns true if commits are pushed to the remote.
// When DOCMAP_PUSH is not set, defaults to true if a remote is enabled.
func (c *RemoteConfig) IsPushEnabled() bool {
	if c == nil {
		return false
	}
	if c.Push != nil {
		return *c.Push && c.IsEnabled()
	}
	return c.IsEnabled()
}

// PushRefSpec returns the refspec used when publishing: the tracked branch,
// or the branch pushed to PushRef when one is set.
func (c *RemoteConfig) PushRefSpec() config.RefSpec {
	src := "refs/heads/" + c.Branch
	dst := src
	if c.PushRef != "" {
		dst = c.PushRef
	}
	return config.RefSpec(src + ":" + dst)
}

// GetAuth returns the appropriate authentication method for the remote URL.
func (c *RemoteConfig) GetAuth() (transport.AuthMethod, error) {
	if c == nil || c.URL == "" {
		return nil, apperrors.ErrRemoteNotConfigured
	}

	if c.IsSSH() {
		auth, err := ssh.NewSSHAgentAuth("git")
		if err != nil {
			return nil, fmt.Errorf("create SSH agent auth: %w", err)
		}
		return auth, nil
	}

	if c.Password == "" {
		return nil, apperrors.ErrHTTPSPasswordRequired
	}

	return &http.BasicAuth{
		Username: "oauth2",
		Password: c.Password,
	}, nil
}

// TestConnection lists the remote references to check URL and credentials.
func (c *RemoteConfig) TestConnection(ctx context.Context) error {
	if !c.IsEnabled() {
		return apperrors.ErrRemoteNotConfigured
	}

	auth, err := c.GetAuth()
	if err != nil {
		return fmt.Errorf("get auth: %w", err)
	}

	rem := git.NewRemote(nil, &config.RemoteConfig{
		Name: "origin",
		URLs: []string{c.URL},
	})

	if _, err = rem.ListContext(ctx, &git.ListOptions{Auth: auth}); err != nil {
		if err.Error() == msgRemoteRepoEmpty {
			return nil
		}
		return fmt.Errorf("list remote: %w", err)
	}

	return nil
}
