package sync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/fclairamb/docmap/internal/mapping"
)

// Repository versions the content tree and the mapping files.
type Repository interface {
	Pull(ctx context.Context) error
	// Commit stages every change and commits it, reporting whether anything was committed.
	Commit(ctx context.Context, message string) (bool, error)
	Push(ctx context.Context) error
}

// Report summarizes one full pass.
type Report struct {
	PassID    string
	Result    *Result
	Push      *PushResult // Nil when no adapter is configured
	Purged    int
	Changed   bool
	Committed bool
	Published bool
	Duration  time.Duration
}

// Pending returns the entities left for a later pass, reconciliation and remote side combined.
func (r *Report) Pending() []mapping.Key {
	if r.Result == nil {
		return nil
	}
	if r.Push == nil {
		return r.Result.Pending()
	}
	return uniqueKeys(slices.Concat(r.Result.Held, r.Result.Deferred, r.Push.Deferred))
}

// Runner serializes full passes: load the mapping, reconcile, push, purge,
// save, then commit and publish when something changed.
type Runner struct {
	mu gosync.Mutex

	engine     *Engine
	mappingDir string
	pusher     *Pusher
	repo       Repository
	commit     bool
	publish    bool
	logger     *slog.Logger

	pushRetries int
	pushDelay   time.Duration
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithPusher enables the remote side of the pass.
func WithPusher(p *Pusher) RunnerOption {
	return func(r *Runner) {
		r.pusher = p
	}
}

// WithRepository pulls before each pass and, when commit is set, commits
// changes after it. publish pushes the commit to the remote repository.
func WithRepository(repo Repository, commit, publish bool) RunnerOption {
	return func(r *Runner) {
		r.repo = repo
		r.commit = commit
		r.publish = publish
	}
}

// WithPushRetry sets how publishing retries on failure.
func WithPushRetry(retries int, initialDelay time.Duration) RunnerOption {
	return func(r *Runner) {
		r.pushRetries = retries
		r.pushDelay = initialDelay
	}
}

// NewRunner creates a runner reconciling engine's tree against the mapping stored in mappingDir.
func NewRunner(engine *Engine, mappingDir string, opts ...RunnerOption) *Runner {
	runner := &Runner{
		engine:      engine,
		mappingDir:  mappingDir,
		logger:      slog.Default(),
		pushRetries: defaultPushRetries,
		pushDelay:   defaultPushDelay,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

const (
	defaultPushRetries = 3
	defaultPushDelay   = 5 * time.Second
	pushBackoffFactor  = 2.0
)

// Run executes one pass. Concurrent calls wait for each other. The error is
// non-nil only for failures outside a single entity: repository pull, mapping
// load or save, commit or publish.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	report := &Report{PassID: uuid.NewString()}
	ctx = WithPassID(ctx, report.PassID)

	r.logger.InfoContext(ctx, "pass starting", logArgs(ctx, "content_dir", r.engine.Root(), "mapping_dir", r.mappingDir)...)

	if r.repo != nil {
		if err := r.repo.Pull(ctx); err != nil {
			return nil, fmt.Errorf("pull repository: %w", err)
		}
	}

	st, err := mapping.Load(r.mappingDir)
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}

	res, err := r.engine.Reconcile(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	report.Result = res

	if r.pusher != nil {
		report.Push = r.pusher.Push(ctx, st, res)
		report.Purged = st.PurgeDeleted(report.Push.Deleted)
	} else {
		markUnpushed(st, res)
	}

	if err := st.Save(r.mappingDir); err != nil {
		return report, fmt.Errorf("save mapping: %w", err)
	}

	report.Changed = res.Changed() || report.Purged > 0 || (report.Push != nil && report.Push.Changed())

	if report.Changed && r.repo != nil && r.commit {
		if err := r.publishChanges(ctx, report); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	r.logger.InfoContext(ctx, "pass complete", logArgs(ctx,
		"changed", report.Changed,
		"purged", report.Purged,
		"pending", len(report.Pending()),
		"committed", report.Committed,
		"published", report.Published,
		"duration", report.Duration)...)

	return report, nil
}

// markUnpushed flags synchronized entities updated by a pass that has no
// adapter, so the next pass with one still sends the update.
func markUnpushed(st *mapping.Store, res *Result) {
	for _, kind := range mapping.Kinds {
		for _, key := range res.Keys(kind, ActionUpdate) {
			if entry := st.Entry(key); entry != nil && entry.Remote != nil {
				entry.RemoteStale = true
			}
		}
	}
}

func (r *Runner) publishChanges(ctx context.Context, report *Report) error {
	message := fmt.Sprintf("[docmap] update at %s (pass %s)", time.Now().UTC().Format(time.RFC3339), report.PassID)
	committed, err := r.repo.Commit(ctx, message)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	report.Committed = committed

	if !committed || !r.publish {
		return nil
	}
	if err := r.pushWithRetry(ctx); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	report.Published = true
	return nil
}

// pushWithRetry attempts to push to remote with exponential backoff retry logic.
func (r *Runner) pushWithRetry(ctx context.Context) error {
	var lastErr error
	delay := r.pushDelay

	for attempt := 0; attempt <= r.pushRetries; attempt++ {
		if attempt > 0 {
			r.logger.InfoContext(ctx, "retrying push after delay", logArgs(ctx,
				"attempt", attempt,
				"max_attempts", r.pushRetries,
				"delay", delay,
				"previous_error", lastErr)...)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * pushBackoffFactor)
		}

		if err := r.repo.Push(ctx); err != nil {
			lastErr = err
			r.logger.WarnContext(ctx, "push failed", logArgs(ctx,
				"attempt", attempt+1,
				"max_attempts", r.pushRetries+1,
				"error", err)...)
			continue
		}

		if attempt > 0 {
			r.logger.InfoContext(ctx, "push succeeded after retry", logArgs(ctx, "attempt", attempt+1)...)
		}
		return nil
	}

	return fmt.Errorf("push failed after %d attempts: %w", r.pushRetries+1, lastErr)
}
