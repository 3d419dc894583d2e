package sync

import (
	"context"
	"log/slog"
	"slices"

	"github.com/fclairamb/docmap/internal/mapping"
)

// Action is the classification of one entity for one pass.
type Action int

// Classifications, relative to the mapping snapshot taken when the pass started.
const (
	ActionUnchanged Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

// String returns the action name used in logs and reports.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unchanged"
	}
}

// Rename is a filesystem rename that embedded a freshly allocated identifier.
type Rename struct {
	Key  mapping.Key
	From string
	To   string
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Actions holds exactly one classification per entity of the store.
	Actions map[mapping.Key]Action
	// Renames lists the renames executed, deepest first.
	Renames []Rename
	// TitleChanges lists known entities whose title was synced from their name.
	TitleChanges []mapping.Key
	// Held lists entities frozen this pass because their node or parent could not be resolved.
	Held []mapping.Key
	// Deferred lists allocations whose rename failed; they are retried next pass.
	Deferred []mapping.Key
	// Warnings holds the per-entity errors met during the pass.
	Warnings []error
}

func newResult() *Result {
	return &Result{Actions: make(map[mapping.Key]Action)}
}

// Action returns the classification of key.
func (r *Result) Action(key mapping.Key) Action {
	return r.Actions[key]
}

// Keys returns the entities of kind classified as action, by ascending id.
func (r *Result) Keys(kind mapping.Kind, action Action) []mapping.Key {
	var keys []mapping.Key
	for key, a := range r.Actions {
		if key.Kind == kind && a == action {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, func(a, b mapping.Key) int { return a.ID - b.ID })
	return keys
}

// Count returns how many entities of kind are classified as action.
func (r *Result) Count(kind mapping.Kind, action Action) int {
	count := 0
	for key, a := range r.Actions {
		if key.Kind == kind && a == action {
			count++
		}
	}
	return count
}

// Changed reports whether the pass produced anything to publish.
func (r *Result) Changed() bool {
	if len(r.Renames) > 0 {
		return true
	}
	for _, a := range r.Actions {
		if a != ActionUnchanged {
			return true
		}
	}
	return false
}

// Pending returns the entities that could not be settled this pass.
func (r *Result) Pending() []mapping.Key {
	return uniqueKeys(slices.Concat(r.Held, r.Deferred))
}

// uniqueKeys sorts keys by kind then id and drops duplicates.
func uniqueKeys(keys []mapping.Key) []mapping.Key {
	slices.SortFunc(keys, func(a, b mapping.Key) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return a.ID - b.ID
	})
	return slices.Compact(keys)
}

func (r *Result) warn(ctx context.Context, logger *slog.Logger, err error) {
	r.Warnings = append(r.Warnings, err)
	logger.WarnContext(ctx, "entity skipped", logArgs(ctx, "error", err)...)
}

func (r *Result) hold(key mapping.Key) {
	r.Held = append(r.Held, key)
}

// classify assigns one action to every entity of the store.
func (r *Result) classify(st *mapping.Store) {
	snap := st.Snapshot()
	for _, kind := range mapping.Kinds {
		for _, id := range st.IDs(kind) {
			key := mapping.Key{Kind: kind, ID: id}
			r.Actions[key] = classifyOne(st, snap, key)
			if st.Found(key) && !st.Held(key) {
				st.Entry(key).Unlinked = false
			}
		}
	}
}

func classifyOne(st *mapping.Store, snap *mapping.Snapshot, key mapping.Key) Action {
	found := st.Found(key)
	switch {
	case st.Held(key):
		return ActionUnchanged
	case found && (st.Created(key) || st.Entry(key).Unlinked):
		return ActionCreate
	case found && snap.Differs(st, key):
		return ActionUpdate
	case found:
		return ActionUnchanged
	case st.Created(key):
		// Allocated this pass but its rename failed: settled next pass.
		return ActionUnchanged
	default:
		return ActionDelete
	}
}
