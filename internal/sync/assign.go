package sync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/mapping"
)

// renamePlan is a rename decided during assignPhase.
type renamePlan struct {
	key  mapping.Key
	from string
	to   string
}

// assignment is what assignPhase decided, consumed by the rename step and linkPhase.
type assignment struct {
	renames  []renamePlan
	collided map[mapping.Key]bool
}

// assignPhase is the first pass over the tree. Nothing is renamed here: renames
// are only planned, so the walk never runs over paths it is changing.
func (e *Engine) assignPhase(ctx context.Context, st *mapping.Store, nodes []*node, res *Result) *assignment {
	plan := &assignment{collided: make(map[mapping.Key]bool)}

	// Every id present on disk moves its counter before anything is
	// allocated, so a fresh id never lands on a name met later in the walk.
	claims := make(map[mapping.Key]int)
	for _, n := range nodes {
		if n.err == nil && n.name.Identified {
			claims[n.key()]++
			st.Observe(n.kind, n.name.ID)
		}
	}

	for _, n := range nodes {
		if n.parent != nil && n.parent.skip {
			n.skip = true
			continue
		}

		switch {
		case n.err != nil:
			n.skip = true
			res.warn(ctx, e.logger, apperrors.NewEntityError(n.kind.String(), 0, n.path, n.err))
		case !n.name.Identified:
			e.allocate(ctx, st, n, plan)
		case claims[n.key()] > 1:
			n.skip = true
			if !plan.collided[n.key()] {
				plan.collided[n.key()] = true
				res.warn(ctx, e.logger, entityError(n.key(), n.path, apperrors.ErrIdentifierCollision))
			}
		default:
			e.identify(ctx, st, n, res)
		}
	}

	return plan
}

// identify syncs a named node with its record, registering ids the store never saw.
func (e *Engine) identify(ctx context.Context, st *mapping.Store, n *node, res *Result) {
	key := n.key()
	entry := st.Entry(key)
	if entry == nil {
		st.Insert(key, n.name.Title)
		st.MarkCreated(key)
		e.logger.InfoContext(ctx, "discovered identifier",
			logArgs(ctx, "kind", key.Kind.String(), "id", key.ID, "title", n.name.Title)...)
		return
	}

	if entry.Title != n.name.Title {
		e.logger.InfoContext(ctx, "title changed",
			logArgs(ctx, "kind", key.Kind.String(), "id", key.ID, "old_title", entry.Title, "new_title", n.name.Title)...)
		entry.Title = n.name.Title
		res.TitleChanges = append(res.TitleChanges, key)
	}
}

// allocate issues an identifier for an unnamed node and plans its rename.
func (e *Engine) allocate(ctx context.Context, st *mapping.Store, n *node, plan *assignment) {
	id := st.Allocate(n.kind)
	key := mapping.Key{Kind: n.kind, ID: id}
	st.Insert(key, n.name.Title)
	st.MarkCreated(key)

	target := filepath.Join(filepath.Dir(n.path), n.name.WithID(id).String())
	plan.renames = append(plan.renames, renamePlan{key: key, from: n.path, to: target})

	e.logger.DebugContext(ctx, "allocated identifier",
		logArgs(ctx, "kind", key.Kind.String(), "id", id, "path", n.path)...)
}

// executeRenames applies the planned renames, articles first, then folders,
// then categories, so paths planned under a parent stay valid until the
// parent itself moves. A failed rename defers the entity, it never aborts.
func (e *Engine) executeRenames(ctx context.Context, plan *assignment, res *Result) {
	renames := slices.Clone(plan.renames)
	slices.SortStableFunc(renames, func(a, b renamePlan) int {
		return cmp.Compare(b.key.Kind, a.key.Kind)
	})

	for _, r := range renames {
		if err := renameExclusive(r.from, r.to); err != nil {
			res.Deferred = append(res.Deferred, r.key)
			res.warn(ctx, e.logger, entityError(r.key, r.from, fmt.Errorf("%w: %w", apperrors.ErrRenameFailure, err)))
			continue
		}

		res.Renames = append(res.Renames, Rename{Key: r.key, From: r.from, To: r.to})
		e.logger.InfoContext(ctx, "renamed",
			logArgs(ctx, "kind", r.key.Kind.String(), "id", r.key.ID, "from", r.from, "to", r.to)...)
	}

	if len(res.Deferred) > 0 {
		e.logger.WarnContext(ctx, "some identifiers could not be embedded, retrying next pass",
			logArgs(ctx, "count", len(res.Deferred))...)
	}
}

// renameExclusive renames from to to, refusing to replace an existing node.
func renameExclusive(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return apperrors.ErrRenameTargetExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat target: %w", err)
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
