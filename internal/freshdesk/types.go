package freshdesk

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fclairamb/docmap/internal/apperrors"
)

// Visibility and publication flags of the solutions API.
const (
	folderVisibilityAll  = 1
	articleStatusPublic  = 2
	articleTypePermanent = 1
)

type categoryPayload struct {
	Category categoryFields `json:"solution_category"`
}

type categoryFields struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type folderPayload struct {
	Folder folderFields `json:"solution_folder"`
}

type folderFields struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Visibility  int    `json:"visibility"`
}

type articlePayload struct {
	Article articleFields `json:"solution_article"`
}

type articleFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      int    `json:"status,omitempty"`
	ArtType     int    `json:"art_type,omitempty"`
	FolderID    int64  `json:"folder_id,omitempty"`
}

type categoryEnvelope struct {
	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"category"`
}

type folderEnvelope struct {
	Folder struct {
		ID         int64  `json:"id"`
		CategoryID int64  `json:"category_id"`
		Name       string `json:"name"`
	} `json:"folder"`
}

type articleEnvelope struct {
	Article struct {
		ID       int64  `json:"id"`
		FolderID int64  `json:"folder_id"`
		Title    string `json:"title"`
	} `json:"article"`
}

// APIError is an error response from Freshdesk.
type APIError struct {
	*apperrors.HTTPError

	Messages []string
}

// Unwrap exposes the HTTP error.
func (e *APIError) Unwrap() error {
	return e.HTTPError
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return e.HTTPError.Error()
	}
	return e.HTTPError.Error() + ": " + strings.Join(e.Messages, "; ")
}

// IsNotFound reports whether the remote entity does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFoundError checks if an error (possibly wrapped) is a Freshdesk 404.
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsNotFound()
	}
	return false
}

// newAPIError decodes the error body. Freshdesk answers either
// {"errors": {"error": "..."}} or a list of [field, message] pairs.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{HTTPError: apperrors.NewHTTPError(status, strings.TrimSpace(string(body)))}

	var single struct {
		Errors struct {
			Error string `json:"error"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &single) == nil && single.Errors.Error != "" {
		apiErr.Messages = []string{single.Errors.Error}
		apiErr.Body = ""
		return apiErr
	}

	var pairs [][]string
	if json.Unmarshal(body, &pairs) == nil && len(pairs) > 0 {
		for _, pair := range pairs {
			apiErr.Messages = append(apiErr.Messages, strings.Join(pair, " "))
		}
		apiErr.Body = ""
	}
	return apiErr
}
