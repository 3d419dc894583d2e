package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/fclairamb/docmap/internal/sync"
)

// PassRunner runs one full reconciliation pass.
type PassRunner interface {
	Run(ctx context.Context) (*sync.Report, error)
}

// SyncWorker runs passes in the background, one at a time.
type SyncWorker struct {
	runner    PassRunner
	logger    *slog.Logger
	syncDelay time.Duration
	notify    chan struct{}
	onPass    func(*sync.Report, error)
}

// SyncWorkerOption configures the SyncWorker.
type SyncWorkerOption func(*SyncWorker)

// WithSyncDelay sets the debounce delay before processing.
// This allows multiple rapid notifications to coalesce into a single pass.
func WithSyncDelay(d time.Duration) SyncWorkerOption {
	return func(w *SyncWorker) {
		w.syncDelay = d
	}
}

// WithPassHook is called after every pass.
func WithPassHook(fn func(*sync.Report, error)) SyncWorkerOption {
	return func(w *SyncWorker) {
		w.onPass = fn
	}
}

// NewSyncWorker creates a new sync worker.
func NewSyncWorker(runner PassRunner, logger *slog.Logger, opts ...SyncWorkerOption) *SyncWorker {
	worker := &SyncWorker{
		runner: runner,
		logger: logger,
		notify: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(worker)
	}

	return worker
}

// Notify signals that a pass should run.
// This is non-blocking: if a notification is already pending, it's a no-op.
func (w *SyncWorker) Notify() {
	select {
	case w.notify <- struct{}{}:
		w.logger.Debug("sync worker notified")
	default:
		w.logger.Debug("sync worker notification skipped (already pending)")
	}
}

// Start runs the worker until the context is canceled.
// This method blocks and should be called in a goroutine.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.InfoContext(ctx, "sync worker started", "sync_delay", w.syncDelay)

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "sync worker stopping")
			return
		case <-w.notify:
			w.processWithDelay(ctx)
		}
	}
}

// processWithDelay waits for the sync delay (if configured) then runs a pass.
// A failed pass is logged; the next notification retries it.
func (w *SyncWorker) processWithDelay(ctx context.Context) {
	if w.syncDelay > 0 {
		w.logger.DebugContext(ctx, "waiting for sync delay", "delay", w.syncDelay)

		timer := time.NewTimer(w.syncDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	report, err := w.runner.Run(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "pass failed", "error", err)
	} else {
		w.logger.InfoContext(ctx, "pass finished",
			"pass_id", report.PassID,
			"changed", report.Changed,
			"pending", len(report.Pending()))
	}

	if w.onPass != nil {
		w.onPass(report, err)
	}
}
