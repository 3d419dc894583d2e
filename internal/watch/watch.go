// Package watch triggers a pass when the content tree changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// maxDepth is the deepest watched directory below the root (folders).
const maxDepth = 2

// Notifier is told that the tree changed.
type Notifier interface {
	Notify()
}

// Watcher watches the category and folder directories of a content tree and
// notifies once the tree has been quiet for the debounce delay.
type Watcher struct {
	root     string
	notifier Notifier
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// Option configures the Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the tree must stay quiet before notifying.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a watcher for root. Run must be called to start watching.
func New(root string, notifier Notifier, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     filepath.Clean(root),
		notifier: notifier,
		debounce: 2 * time.Second,
		logger:   slog.Default(),
		watcher:  fsw,
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Run watches until ctx is canceled. The watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "watching content tree", "root", w.root, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.DebugContext(ctx, "content changed", "path", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watch error", "error", err)

		case <-timer.C:
			w.logger.InfoContext(ctx, "content tree settled, triggering pass")
			w.notifier.Notify()
		}
	}
}

// relevant drops chmod events and anything hidden or deeper than an article.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return len(parts) <= maxDepth+1
}

// addTree watches dir and its subdirectories down to maxDepth.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		depth := w.depth(path)
		if depth > maxDepth || (path != w.root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}
