package sync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/mapping"
)

// PushResult is the outcome of handing a pass's actions to the Adapter.
type PushResult struct {
	Created  []mapping.Key
	Updated  []mapping.Key
	Deleted  []mapping.Key // Confirmed deletions, safe to purge
	Deferred []mapping.Key // Parent not synchronized yet
	Failed   []error
}

// Changed reports whether any remote call took effect.
func (p *PushResult) Changed() bool {
	return len(p.Created)+len(p.Updated)+len(p.Deleted) > 0
}

// Pusher applies reconciliation results through an Adapter.
type Pusher struct {
	adapter Adapter
	logger  *slog.Logger
	dryRun  bool
}

// PusherOption configures the Pusher.
type PusherOption func(*Pusher)

// WithPusherLogger sets a custom logger.
func WithPusherLogger(l *slog.Logger) PusherOption {
	return func(p *Pusher) {
		p.logger = l
	}
}

// WithDryRun logs the remote calls instead of issuing them.
func WithDryRun(dryRun bool) PusherOption {
	return func(p *Pusher) {
		p.dryRun = dryRun
	}
}

// NewPusher creates a pusher on top of adapter.
func NewPusher(adapter Adapter, opts ...PusherOption) *Pusher {
	pusher := &Pusher{
		adapter: adapter,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(pusher)
	}

	return pusher
}

type pushOp int

const (
	opNone pushOp = iota
	opCreate
	opUpdate
	opDelete
)

// Push creates and updates parents before children, then deletes children
// before parents. Entities never synchronized are created whatever their
// classification; a failed update leaves the entity marked stale so the next
// pass retries it.
func (p *Pusher) Push(ctx context.Context, st *mapping.Store, res *Result) *PushResult {
	out := &PushResult{}

	for _, kind := range mapping.Kinds {
		for _, id := range st.IDs(kind) {
			if ctx.Err() != nil {
				out.Failed = append(out.Failed, ctx.Err())
				return out
			}
			p.upsert(ctx, st, res, mapping.Key{Kind: kind, ID: id}, out)
		}
	}

	for _, kind := range slices.Backward(mapping.Kinds) {
		for _, key := range res.Keys(kind, ActionDelete) {
			if ctx.Err() != nil {
				out.Failed = append(out.Failed, ctx.Err())
				return out
			}
			p.remove(ctx, st, key, out)
		}
	}

	p.logger.InfoContext(ctx, "remote sync complete", logArgs(ctx,
		"created", len(out.Created),
		"updated", len(out.Updated),
		"deleted", len(out.Deleted),
		"deferred", len(out.Deferred),
		"failed", len(out.Failed),
		"dry_run", p.dryRun)...)

	return out
}

func (p *Pusher) upsert(ctx context.Context, st *mapping.Store, res *Result, key mapping.Key, out *PushResult) {
	if !st.Found(key) || res.Action(key) == ActionDelete {
		return
	}

	entry := st.Entry(key)
	op := opNone
	switch {
	case entry.Remote == nil:
		op = opCreate
	case res.Action(key) == ActionUpdate || entry.RemoteStale:
		op = opUpdate
	}
	if op == opNone {
		return
	}

	parent, ready := p.parentRef(st, key)
	if !ready {
		if op == opUpdate {
			entry.RemoteStale = true
		}
		out.Deferred = append(out.Deferred, key)
		p.logger.InfoContext(ctx, "parent not synchronized yet, deferring",
			logArgs(ctx, "kind", key.Kind.String(), "id", key.ID)...)
		return
	}

	req := Request{Key: key, Title: entry.Title, Body: body(st, key), Ref: entry.Remote, Parent: parent}

	if p.dryRun {
		if op == opUpdate {
			entry.RemoteStale = true
		}
		p.logger.InfoContext(ctx, "dry run",
			logArgs(ctx, "op", op.String(), "kind", key.Kind.String(), "id", key.ID, "title", entry.Title)...)
		return
	}

	switch op {
	case opCreate:
		ref, err := p.adapter.Create(ctx, req)
		if err == nil && ref == nil {
			err = apperrors.ErrMissingRemoteRef
		}
		if err != nil {
			p.fail(ctx, key, op, err, out)
			return
		}
		entry.Remote = ref
		entry.RemoteStale = false
		out.Created = append(out.Created, key)
	case opUpdate:
		ref, err := p.adapter.Update(ctx, req)
		if err != nil {
			entry.RemoteStale = true
			p.fail(ctx, key, op, err, out)
			return
		}
		if ref != nil {
			entry.Remote = ref
		}
		entry.RemoteStale = false
		out.Updated = append(out.Updated, key)
	}

	p.logger.InfoContext(ctx, "remote "+op.String(),
		logArgs(ctx, "kind", key.Kind.String(), "id", key.ID, "remote_id", entry.Remote.ID)...)
}

func (p *Pusher) remove(ctx context.Context, st *mapping.Store, key mapping.Key, out *PushResult) {
	entry := st.Entry(key)
	if entry == nil {
		return
	}
	if p.dryRun {
		p.logger.InfoContext(ctx, "dry run",
			logArgs(ctx, "op", "delete", "kind", key.Kind.String(), "id", key.ID, "title", entry.Title)...)
		return
	}

	// Never pushed: nothing to delete remotely.
	if entry.Remote == nil {
		out.Deleted = append(out.Deleted, key)
		return
	}

	if err := p.adapter.Delete(ctx, Request{Key: key, Title: entry.Title, Ref: entry.Remote}); err != nil {
		p.fail(ctx, key, opDelete, err, out)
		return
	}

	out.Deleted = append(out.Deleted, key)
	p.logger.InfoContext(ctx, "remote delete",
		logArgs(ctx, "kind", key.Kind.String(), "id", key.ID, "remote_id", entry.Remote.ID)...)
}

// parentRef looks up the remote reference of key's parent. ready is false
// when the parent has not been synchronized yet.
func (p *Pusher) parentRef(st *mapping.Store, key mapping.Key) (*mapping.RemoteRef, bool) {
	parentKind := key.Kind.Parent()
	if parentKind == 0 {
		return nil, true
	}
	entry := st.Entry(mapping.Key{Kind: parentKind, ID: st.ParentID(key)})
	if entry == nil || entry.Remote == nil {
		return nil, false
	}
	return entry.Remote, true
}

func (p *Pusher) fail(ctx context.Context, key mapping.Key, op pushOp, err error, out *PushResult) {
	wrapped := entityError(key, "", fmt.Errorf("%w: %s: %w", apperrors.ErrSyncFailure, op, err))
	out.Failed = append(out.Failed, wrapped)
	p.logger.WarnContext(ctx, "remote call failed", logArgs(ctx, "error", wrapped)...)
}

func body(st *mapping.Store, key mapping.Key) string {
	if key.Kind != mapping.KindArticle {
		return ""
	}
	if article, ok := st.Articles.Get(key.ID); ok {
		return article.RenderedBody
	}
	return ""
}

func (o pushOp) String() string {
	switch o {
	case opCreate:
		return "create"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	default:
		return "none"
	}
}
