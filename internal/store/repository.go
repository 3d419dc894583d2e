// Package store versions the content tree and the mapping files in a git
// repository, optionally mirrored to a remote.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	gosync "sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	msgRemoteRepoEmpty = "remote repository is empty"

	dirPerm = 0o750 // Directory permissions: rwxr-x---
)

// Repository is the git working copy holding the content and mapping directories.
type Repository struct {
	rootPath     string
	repo         *git.Repository
	mu           gosync.Mutex
	logger       *slog.Logger
	remoteConfig *RemoteConfig
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLogger sets a custom logger for the repository.
func WithLogger(l *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithRemoteConfig sets the remote git configuration.
func WithRemoteConfig(cfg *RemoteConfig) RepositoryOption {
	return func(r *Repository) {
		r.remoteConfig = cfg
	}
}

// Open opens the repository at path. A missing directory is cloned from the
// remote when one is configured, otherwise a fresh repository is initialized.
func Open(path string, opts ...RepositoryOption) (*Repository, error) {
	r := &Repository{
		rootPath: path,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	repo, err := r.initializeRepository(path)
	if err != nil {
		return nil, err
	}

	r.repo = repo
	return r, nil
}

// Root returns the working copy path.
func (r *Repository) Root() string {
	return r.rootPath
}

// RemoteConfig returns the remote configuration.
func (r *Repository) RemoteConfig() *RemoteConfig {
	return r.remoteConfig
}

// Pull fetches and merges the tracked branch. It is a no-op without a remote.
func (r *Repository) Pull(ctx context.Context) error {
	if !r.remoteConfig.IsEnabled() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	auth, err := r.remoteConfig.GetAuth()
	if err != nil {
		return fmt.Errorf("get auth: %w", err)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}

	r.logger.InfoContext(ctx, "pulling from remote", "url", r.remoteConfig.URL, "branch", r.remoteConfig.Branch)

	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.remoteConfig.Branch),
		Auth:          auth,
	})
	if err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			r.logger.DebugContext(ctx, "already up to date")
			return nil
		}
		if err.Error() == msgRemoteRepoEmpty {
			r.logger.InfoContext(ctx, msgRemoteRepoEmpty+", nothing to pull")
			return nil
		}
		return fmt.Errorf("pull: %w", err)
	}

	r.logger.InfoContext(ctx, "pull complete")
	return nil
}

// Commit stages every change of the working copy (git add -A) and commits it.
// It reports false when there was nothing to commit.
func (r *Repository) Commit(ctx context.Context, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("get worktree: %w", err)
	}

	status, err := stageAll(worktree)
	if err != nil {
		return false, err
	}
	if !hasStagedChanges(status) {
		r.logger.DebugContext(ctx, "nothing to commit")
		return false, nil
	}

	authorName, authorEmail := defaultUser, defaultEmail
	if r.remoteConfig != nil {
		authorName, authorEmail = r.remoteConfig.User, r.remoteConfig.Email
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "committed changes", "hash", hash.String(), "files", len(status))
	return true, nil
}

// Push publishes local commits to the remote, to PushRef when one is configured.
func (r *Repository) Push(ctx context.Context) error {
	if !r.remoteConfig.IsEnabled() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	auth, err := r.remoteConfig.GetAuth()
	if err != nil {
		return fmt.Errorf("get auth: %w", err)
	}

	refSpec := r.remoteConfig.PushRefSpec()
	r.logger.InfoContext(ctx, "pushing to remote", "url", r.remoteConfig.URL, "refspec", refSpec.String())

	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			r.logger.InfoContext(ctx, "nothing to push")
			return nil
		}
		return fmt.Errorf("push: %w", err)
	}

	r.logger.InfoContext(ctx, "push complete")
	return nil
}

// Changes lists the paths of the working copy differing from HEAD, sorted.
func (r *Repository) Changes() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	paths := make([]string, 0, len(status))
	for path, st := range status {
		if st.Staging != git.Unmodified || st.Worktree != git.Unmodified {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// LastCommit returns the time of the HEAD commit, zero for an empty repository.
func (r *Repository) LastCommit() (time.Time, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get head: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return time.Time{}, fmt.Errorf("get commit: %w", err)
	}
	return commit.Author.When, nil
}

// stageAll is git add -A: new and modified files are added, files removed
// from disk (including the old side of renames) are removed from the index.
func stageAll(worktree *git.Worktree) (git.Status, error) {
	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("git add: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	removed := false
	for path, st := range status {
		if st.Worktree == git.Deleted {
			if _, err := worktree.Remove(path); err != nil {
				return nil, fmt.Errorf("git rm %s: %w", path, err)
			}
			removed = true
		}
	}
	if !removed {
		return status, nil
	}

	status, err = worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return status, nil
}

func hasStagedChanges(status git.Status) bool {
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			return true
		}
	}
	return false
}

// initializeRepository clones from the remote when path does not exist yet,
// otherwise opens or creates a local repository.
func (r *Repository) initializeRepository(path string) (*git.Repository, error) {
	_, statErr := os.Stat(path)
	dirExists := statErr == nil

	if r.remoteConfig.IsEnabled() && !dirExists {
		return r.cloneFromRemote(path)
	}

	return r.openOrCreateLocalRepo(path)
}

func (r *Repository) cloneFromRemote(path string) (*git.Repository, error) {
	r.logger.Info("cloning from remote", "url", r.remoteConfig.URL, "branch", r.remoteConfig.Branch)

	auth, err := r.remoteConfig.GetAuth()
	if err != nil {
		return nil, fmt.Errorf("get auth: %w", err)
	}

	repo, err := git.PlainClone(path, false, &git.CloneOptions{
		URL:           r.remoteConfig.URL,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(r.remoteConfig.Branch),
		SingleBranch:  true,
	})
	if err == nil {
		r.logger.Info("clone complete")
		return repo, nil
	}

	if err.Error() != msgRemoteRepoEmpty {
		return nil, fmt.Errorf("clone repository: %w", err)
	}

	r.logger.Info(msgRemoteRepoEmpty + ", initializing locally")
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	return r.initNewRepo(path)
}

func (r *Repository) openOrCreateLocalRepo(path string) (*git.Repository, error) {
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	repo, err := git.PlainOpen(path)
	if err == nil {
		return r.ensureRemoteConfigured(repo)
	}

	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open git repo: %w", err)
	}

	return r.initNewRepo(path)
}

// initNewRepo initializes a repository on the tracked branch and adds the remote if any.
func (r *Repository) initNewRepo(path string) (*git.Repository, error) {
	branch := defaultBranch
	if r.remoteConfig != nil && r.remoteConfig.Branch != "" {
		branch = r.remoteConfig.Branch
	}

	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	if err != nil {
		return nil, fmt.Errorf("init git repo: %w", err)
	}

	if r.remoteConfig.IsEnabled() {
		if err := r.addRemoteToRepo(repo); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (r *Repository) ensureRemoteConfigured(repo *git.Repository) (*git.Repository, error) {
	if !r.remoteConfig.IsEnabled() {
		return repo, nil
	}

	if _, err := repo.Remote("origin"); err == nil {
		return repo, nil
	}

	r.logger.Info("adding remote origin to existing repo", "url", r.remoteConfig.URL)
	if err := r.addRemoteToRepo(repo); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *Repository) addRemoteToRepo(repo *git.Repository) error {
	_, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{r.remoteConfig.URL},
	})
	if err != nil {
		return fmt.Errorf("add remote origin: %w", err)
	}
	return nil
}
