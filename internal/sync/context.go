package sync

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// passIDKey is the context key for storing the current pass ID.
	passIDKey contextKey = "passID"
)

// WithPassID returns a new context with the pass ID stored.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey, passID)
}

// PassIDFromContext extracts the pass ID from context, returns empty string if not set.
func PassIDFromContext(ctx context.Context) string {
	if v := ctx.Value(passIDKey); v != nil {
		if passID, ok := v.(string); ok {
			return passID
		}
	}
	return ""
}

// logArgs appends the pass ID, when known, to structured log arguments.
func logArgs(ctx context.Context, args ...any) []any {
	if passID := PassIDFromContext(ctx); passID != "" {
		return append(args, "pass_id", passID)
	}
	return args
}
