package sync

import (
	"context"
	"fmt"
	"os"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/mapping"
)

// linkPhase is the second pass, over the tree as renamed. Nodes come parent
// first, so a folder is linked before any of its articles is looked at.
func (e *Engine) linkPhase(ctx context.Context, st *mapping.Store, nodes []*node, plan *assignment, res *Result) {
	for _, n := range nodes {
		if n.parent != nil && n.parent.skip {
			n.skip = true
			e.holdUnderSkippedParent(ctx, st, n, res)
			continue
		}

		if n.err != nil {
			// Reported by assignPhase.
			n.skip = true
			continue
		}

		if !n.name.Identified {
			// Its rename failed: the allocation stays deferred and children
			// cannot name their parent.
			n.skip = true
			n.skipCause = apperrors.ErrMissingParentMapping
			continue
		}

		key := n.key()
		if plan.collided[key] {
			n.skip = true
			e.hold(st, key, res)
			continue
		}
		if !st.Has(key) {
			// Appeared on disk after assignPhase walked the tree.
			n.skip = true
			continue
		}

		switch n.kind {
		case mapping.KindCategory:
			st.MarkFound(key)
		case mapping.KindFolder:
			e.linkFolder(ctx, st, n, res)
		case mapping.KindArticle:
			e.linkArticle(ctx, st, n, res)
		}

		if n.readErr != nil && !n.skip {
			res.warn(ctx, e.logger, entityError(key, n.path, fmt.Errorf("list children: %w", n.readErr)))
			e.holdChildren(st, key, res)
		}
	}
}

func (e *Engine) linkFolder(ctx context.Context, st *mapping.Store, n *node, res *Result) {
	key := n.key()
	parentID := n.parent.name.ID

	if !st.Categories.Has(parentID) {
		e.skipUnlinked(ctx, st, n, parentID, res)
		return
	}

	folder, _ := st.Folders.Get(key.ID)
	folder.Category = parentID
	st.MarkFound(key)
}

func (e *Engine) linkArticle(ctx context.Context, st *mapping.Store, n *node, res *Result) {
	key := n.key()
	parentID := n.parent.name.ID

	if !st.Folders.Has(parentID) {
		e.skipUnlinked(ctx, st, n, parentID, res)
		return
	}

	content, err := os.ReadFile(n.path)
	if err != nil {
		n.skip = true
		e.hold(st, key, res)
		res.warn(ctx, e.logger, entityError(key, n.path, fmt.Errorf("read article: %w", err)))
		return
	}

	digest, err := e.converter.Digest(content)
	if err != nil {
		n.skip = true
		e.hold(st, key, res)
		res.warn(ctx, e.logger, entityError(key, n.path, err))
		return
	}

	article, _ := st.Articles.Get(key.ID)
	article.ContentHash = digest.Hash
	article.RenderedBody = digest.HTML
	article.Folder = parentID
	st.MarkFound(key)
}

// skipUnlinked holds a node whose parent id is absent from the store.
func (e *Engine) skipUnlinked(ctx context.Context, st *mapping.Store, n *node, parentID int, res *Result) {
	key := n.key()
	n.skip = true
	n.skipCause = apperrors.ErrMissingParentMapping
	e.hold(st, key, res)
	res.warn(ctx, e.logger, entityError(key, n.path,
		fmt.Errorf("%w: %s %d", apperrors.ErrMissingParentMapping, key.Kind.Parent(), parentID)))
}

// holdUnderSkippedParent freezes a known node whose parent was excluded from
// this pass. Children of an unresolvable parent are reported individually;
// children of a malformed or colliding parent are covered by the parent's warning.
func (e *Engine) holdUnderSkippedParent(ctx context.Context, st *mapping.Store, n *node, res *Result) {
	if n.err != nil || !n.name.Identified {
		return
	}
	key := n.key()
	if !st.Has(key) {
		return
	}

	e.hold(st, key, res)
	if n.parent.skipCause != nil {
		res.warn(ctx, e.logger, entityError(key, n.path, n.parent.skipCause))
	}
}

// holdChildren freezes the records linked to parent when its directory could not be listed.
func (e *Engine) holdChildren(st *mapping.Store, parent mapping.Key, res *Result) {
	switch parent.Kind {
	case mapping.KindCategory:
		for _, id := range st.Folders.IDs() {
			if folder, _ := st.Folders.Get(id); folder.Category == parent.ID {
				child := mapping.Key{Kind: mapping.KindFolder, ID: id}
				e.hold(st, child, res)
				e.holdChildren(st, child, res)
			}
		}
	case mapping.KindFolder:
		for _, id := range st.Articles.IDs() {
			if article, _ := st.Articles.Get(id); article.Folder == parent.ID {
				e.hold(st, mapping.Key{Kind: mapping.KindArticle, ID: id}, res)
			}
		}
	}
}

func (e *Engine) hold(st *mapping.Store, key mapping.Key, res *Result) {
	if !st.Has(key) || st.Held(key) {
		return
	}
	st.Hold(key)
	res.hold(key)
}
