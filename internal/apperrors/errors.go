// Package apperrors provides common static errors used throughout the application.
package apperrors

import (
	"errors"
	"fmt"
)

// HTTPError represents an HTTP error with a status code.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// NewHTTPError creates a new HTTPError.
func NewHTTPError(statusCode int, body string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Body: body}
}

// EntityError attaches a failure to a single node of the content tree.
// Kind is the entity kind name ("category", "folder", "article"), ID is zero
// when the node has no identifier yet.
type EntityError struct {
	Kind string
	ID   int
	Path string
	Err  error
}

// Error implements the error interface.
func (e *EntityError) Error() string {
	switch {
	case e.ID > 0 && e.Path != "":
		return fmt.Sprintf("%s %d (%s): %v", e.Kind, e.ID, e.Path, e.Err)
	case e.ID > 0:
		return fmt.Sprintf("%s %d: %v", e.Kind, e.ID, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
	}
}

// Unwrap returns the underlying error so errors.Is matches the sentinels below.
func (e *EntityError) Unwrap() error {
	return e.Err
}

// NewEntityError creates a new EntityError.
func NewEntityError(kind string, id int, path string, err error) *EntityError {
	return &EntityError{Kind: kind, ID: id, Path: path, Err: err}
}

// Reconciliation errors. All of them but ErrStoreLoad are reported per entity
// and never abort a pass.
var (
	// ErrParse is returned when a name carries the identifier marker without a valid number.
	ErrParse = errors.New("malformed document identifier")

	// ErrIdentifierCollision is returned when two paths claim the same identifier in one pass.
	ErrIdentifierCollision = errors.New("identifier claimed by more than one path")

	// ErrMissingParentMapping is returned when a folder or article cannot resolve its parent record.
	ErrMissingParentMapping = errors.New("parent mapping not found")

	// ErrRenameFailure is returned when the rename embedding a new identifier could not complete.
	ErrRenameFailure = errors.New("rename failed")

	// ErrRenameTargetExists is returned when the rename target is already present on disk.
	ErrRenameTargetExists = errors.New("rename target already exists")

	// ErrSyncFailure is returned when the remote system rejected a create, update or delete.
	ErrSyncFailure = errors.New("remote sync failed")

	// ErrStoreLoad is returned when one of the mapping collections is missing or unreadable.
	ErrStoreLoad = errors.New("mapping store unreadable")
)

// Configuration and transport errors.
var (
	// ErrRemoteNotConfigured is returned when a git remote operation is attempted but no remote is configured.
	ErrRemoteNotConfigured = errors.New("no remote configured")

	// ErrRemoteNotConfiguredSetURL is returned when push/pull is attempted without DOCMAP_GIT_URL set.
	ErrRemoteNotConfiguredSetURL = errors.New("remote not configured (set DOCMAP_GIT_URL)")

	// ErrHTTPSPasswordRequired is returned when HTTPS git URL is used without DOCMAP_GIT_PASS.
	ErrHTTPSPasswordRequired = errors.New("DOCMAP_GIT_PASS required for HTTPS URLs")

	// ErrAPIKeyRequired is returned when the remote knowledge base credentials are missing.
	ErrAPIKeyRequired = errors.New("freshdesk API key required (--api-key or DOCMAP_FRESHDESK_API_KEY)")

	// ErrAPIURLRequired is returned when the remote knowledge base URL is missing.
	ErrAPIURLRequired = errors.New("freshdesk URL required (--api-url or DOCMAP_FRESHDESK_API_URL)")

	// ErrMaxRetriesExceeded is returned when the maximum number of retries is exceeded.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrMissingRemoteRef is returned when an update or delete is attempted on an entity never pushed.
	ErrMissingRemoteRef = errors.New("entity has no remote reference")

	// ErrUnsupportedKind is returned for an entity kind the adapter does not know.
	ErrUnsupportedKind = errors.New("unsupported entity kind")
)
