// Package sync reconciles the content tree against the identifier mapping and
// pushes the resulting actions to the remote knowledge base.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/converter"
	"github.com/fclairamb/docmap/internal/mapping"
)

// Engine runs reconciliation passes over one content root.
type Engine struct {
	root      string
	converter *converter.Converter
	logger    *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets a custom logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithConverter sets the article renderer.
func WithConverter(c *converter.Converter) EngineOption {
	return func(e *Engine) {
		e.converter = c
	}
}

// NewEngine creates an engine for the tree rooted at root.
func NewEngine(root string, opts ...EngineOption) *Engine {
	engine := &Engine{
		root:      root,
		converter: converter.NewConverter(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Root returns the content root.
func (e *Engine) Root() string {
	return e.root
}

// Reconcile runs one pass against st, mutating st and the tree in place:
//
//  1. assignPhase: parse every name, sync titles of known ids, register
//     discovered ids and allocate ids for unidentified nodes.
//  2. Execute the planned renames, deepest first.
//  3. linkPhase: walk the renamed tree, set parents, fingerprint articles.
//  4. Classify every entity of st against the pass-start snapshot.
//
// Per-entity problems are collected in Result.Warnings. An error is only
// returned when the content root itself cannot be listed.
func (e *Engine) Reconcile(ctx context.Context, st *mapping.Store) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes, err := walkTree(e.root)
	if err != nil {
		return nil, fmt.Errorf("scan tree: %w", err)
	}

	st.BeginPass()
	res := newResult()

	plan := e.assignPhase(ctx, st, nodes, res)
	e.executeRenames(ctx, plan, res)

	nodes, err = walkTree(e.root)
	if err != nil {
		return nil, fmt.Errorf("rescan tree: %w", err)
	}
	e.linkPhase(ctx, st, nodes, plan, res)

	res.classify(st)

	summary := []any{"renames", len(res.Renames), "warnings", len(res.Warnings), "pending", len(res.Pending())}
	for _, kind := range mapping.Kinds {
		summary = append(summary,
			kind.String()+"_created", res.Count(kind, ActionCreate),
			kind.String()+"_updated", res.Count(kind, ActionUpdate),
			kind.String()+"_deleted", res.Count(kind, ActionDelete))
	}
	e.logger.InfoContext(ctx, "reconciliation complete", logArgs(ctx, summary...)...)

	return res, nil
}

func entityError(key mapping.Key, path string, err error) error {
	return apperrors.NewEntityError(key.Kind.String(), key.ID, path, err)
}
