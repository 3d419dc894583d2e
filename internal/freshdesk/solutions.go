package freshdesk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/mapping"
	"github.com/fclairamb/docmap/internal/sync"
)

// Adapter pushes categories, folders and articles to the solutions area.
type Adapter struct {
	client *Client
	logger *slog.Logger
}

var _ sync.Adapter = (*Adapter)(nil)

// NewAdapter wraps client as a sync.Adapter.
func NewAdapter(client *Client, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{client: client, logger: logger}
}

// Create creates the entity below req.Parent.
func (a *Adapter) Create(ctx context.Context, req sync.Request) (*mapping.RemoteRef, error) {
	var (
		ref *mapping.RemoteRef
		err error
	)

	switch req.Key.Kind {
	case mapping.KindCategory:
		ref, err = a.writeCategory(ctx, http.MethodPost, "/solution/categories.json", req)
	case mapping.KindFolder:
		if req.Parent == nil {
			return nil, apperrors.ErrMissingRemoteRef
		}
		path := fmt.Sprintf("/solution/categories/%d/folders.json", req.Parent.ID)
		ref, err = a.writeFolder(ctx, http.MethodPost, path, req, req.Parent.ID)
	case mapping.KindArticle:
		if req.Parent == nil {
			return nil, apperrors.ErrMissingRemoteRef
		}
		path := fmt.Sprintf("/solution/categories/%d/folders/%d/articles.json", req.Parent.CategoryID, req.Parent.ID)
		ref, err = a.writeArticle(ctx, http.MethodPost, path, req, req.Parent, true)
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, req.Key.Kind)
	}

	a.logAction(ctx, req, "creation", err)
	return ref, err
}

// Update rewrites the entity in place. A moved folder or article is addressed
// by its new parent.
func (a *Adapter) Update(ctx context.Context, req sync.Request) (*mapping.RemoteRef, error) {
	if req.Ref == nil {
		return nil, apperrors.ErrMissingRemoteRef
	}

	var (
		ref *mapping.RemoteRef
		err error
	)

	switch req.Key.Kind {
	case mapping.KindCategory:
		ref, err = a.writeCategory(ctx, http.MethodPut, categoryPath(req.Ref), req)
	case mapping.KindFolder:
		categoryID := req.Ref.CategoryID
		if req.Parent != nil {
			categoryID = req.Parent.ID
		}
		ref, err = a.writeFolder(ctx, http.MethodPut, folderPath(req.Ref), req, categoryID)
	case mapping.KindArticle:
		parent := &mapping.RemoteRef{ID: req.Ref.FolderID, CategoryID: req.Ref.CategoryID}
		if req.Parent != nil {
			parent = req.Parent
		}
		ref, err = a.writeArticle(ctx, http.MethodPut, articlePath(req.Ref), req, parent, req.Ref.FolderID != parent.ID)
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, req.Key.Kind)
	}

	a.logAction(ctx, req, "update", err)
	return ref, err
}

// Delete removes the entity. An entity already gone counts as deleted.
func (a *Adapter) Delete(ctx context.Context, req sync.Request) error {
	if req.Ref == nil {
		return apperrors.ErrMissingRemoteRef
	}

	var path string
	switch req.Key.Kind {
	case mapping.KindCategory:
		path = categoryPath(req.Ref)
	case mapping.KindFolder:
		path = folderPath(req.Ref)
	case mapping.KindArticle:
		path = articlePath(req.Ref)
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, req.Key.Kind)
	}

	err := a.client.do(ctx, http.MethodDelete, path, nil, nil)
	if IsNotFoundError(err) {
		a.logger.InfoContext(ctx, "entity already absent remotely", "kind", req.Key.Kind.String(), "remote_id", req.Ref.ID)
		err = nil
	}
	a.logAction(ctx, req, "deletion", err)
	return err
}

func (a *Adapter) writeCategory(ctx context.Context, method, path string, req sync.Request) (*mapping.RemoteRef, error) {
	payload := categoryPayload{Category: categoryFields{Name: req.Title}}
	if method == http.MethodPost {
		payload.Category.Description = req.Title
	}

	var resp categoryEnvelope
	if err := a.client.do(ctx, method, path, payload, &resp); err != nil {
		return nil, err
	}

	id := resp.Category.ID
	if id == 0 && req.Ref != nil {
		id = req.Ref.ID
	}
	if id == 0 {
		return nil, apperrors.ErrMissingRemoteRef
	}
	return &mapping.RemoteRef{ID: id}, nil
}

func (a *Adapter) writeFolder(
	ctx context.Context, method, path string, req sync.Request, categoryID int64,
) (*mapping.RemoteRef, error) {
	payload := folderPayload{Folder: folderFields{
		Name:        req.Title,
		Description: req.Title,
		Visibility:  folderVisibilityAll,
	}}

	var resp folderEnvelope
	if err := a.client.do(ctx, method, path, payload, &resp); err != nil {
		return nil, err
	}

	ref := &mapping.RemoteRef{ID: resp.Folder.ID, CategoryID: resp.Folder.CategoryID}
	if ref.ID == 0 && req.Ref != nil {
		ref.ID = req.Ref.ID
	}
	if ref.CategoryID == 0 {
		ref.CategoryID = categoryID
	}
	if ref.ID == 0 {
		return nil, apperrors.ErrMissingRemoteRef
	}
	return ref, nil
}

func (a *Adapter) writeArticle(
	ctx context.Context, method, path string, req sync.Request, folder *mapping.RemoteRef, withFolder bool,
) (*mapping.RemoteRef, error) {
	fields := articleFields{Title: req.Title, Description: req.Body}
	if method == http.MethodPost {
		fields.Status = articleStatusPublic
		fields.ArtType = articleTypePermanent
	}
	if withFolder {
		fields.FolderID = folder.ID
	}

	var resp articleEnvelope
	if err := a.client.do(ctx, method, path, articlePayload{Article: fields}, &resp); err != nil {
		return nil, err
	}

	ref := &mapping.RemoteRef{ID: resp.Article.ID, FolderID: resp.Article.FolderID, CategoryID: folder.CategoryID}
	if ref.ID == 0 && req.Ref != nil {
		ref.ID = req.Ref.ID
	}
	if ref.FolderID == 0 {
		ref.FolderID = folder.ID
	}
	if ref.ID == 0 {
		return nil, apperrors.ErrMissingRemoteRef
	}
	ref.URL = fmt.Sprintf("%s/support/solutions/articles/%d", a.client.BaseURL(), ref.ID)
	return ref, nil
}

func (a *Adapter) logAction(ctx context.Context, req sync.Request, action string, err error) {
	if err != nil {
		a.logger.ErrorContext(ctx, action+" failed",
			"kind", req.Key.Kind.String(), "id", req.Key.ID, "title", req.Title, "error", err)
		return
	}
	a.logger.InfoContext(ctx, action+" successful", "kind", req.Key.Kind.String(), "id", req.Key.ID, "title", req.Title)
}

func categoryPath(ref *mapping.RemoteRef) string {
	return fmt.Sprintf("/solution/categories/%d.json", ref.ID)
}

func folderPath(ref *mapping.RemoteRef) string {
	return fmt.Sprintf("/solution/categories/%d/folders/%d.json", ref.CategoryID, ref.ID)
}

func articlePath(ref *mapping.RemoteRef) string {
	return fmt.Sprintf("/solution/categories/%d/folders/%d/articles/%d.json", ref.CategoryID, ref.FolderID, ref.ID)
}
