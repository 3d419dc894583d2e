package freshdesk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/mapping"
	"github.com/fclairamb/docmap/internal/sync"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]map[string]any
}

// fakeHelpdesk answers every request with the status and body returned by respond.
func fakeHelpdesk(t *testing.T, respond func(r *http.Request) (int, string)) (*Client, func() []recordedRequest) {
	t.Helper()

	var (
		mu       gosync.Mutex
		requests []recordedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "secret" || pass != "X" {
			t.Errorf("unexpected basic auth %q:%q", user, pass)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "docmap/") {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}

		rec := recordedRequest{method: r.Method, path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			if err := json.Unmarshal(data, &rec.body); err != nil {
				t.Errorf("invalid request body %s: %v", data, err)
			}
		}
		mu.Lock()
		requests = append(requests, rec)
		mu.Unlock()

		status, body := respond(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL+"/", "secret",
		WithRateInterval(0),
		WithBackoff(time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	recorded := func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
	return client, recorded
}

func newTestAdapter(client *Client) *Adapter {
	return NewAdapter(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAdapter_CreateCategory(t *testing.T) {
	t.Parallel()

	client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
		return http.StatusCreated, `{"category":{"id":42,"name":"Networking"}}`
	})

	ref, err := newTestAdapter(client).Create(context.Background(), sync.Request{
		Key:   mapping.Key{Kind: mapping.KindCategory, ID: 1},
		Title: "Networking",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ref.ID != 42 {
		t.Errorf("ref = %+v", ref)
	}

	req := requests()[0]
	if req.method != http.MethodPost || req.path != "/solution/categories.json" {
		t.Errorf("unexpected request %s %s", req.method, req.path)
	}
	if req.body["solution_category"]["name"] != "Networking" {
		t.Errorf("unexpected payload %v", req.body)
	}
}

func TestAdapter_CreateFolder(t *testing.T) {
	t.Parallel()

	client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
		return http.StatusCreated, `{"folder":{"id":7,"category_id":42,"name":"Routers"}}`
	})

	ref, err := newTestAdapter(client).Create(context.Background(), sync.Request{
		Key:    mapping.Key{Kind: mapping.KindFolder, ID: 3},
		Title:  "Routers",
		Parent: &mapping.RemoteRef{ID: 42},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ref.ID != 7 || ref.CategoryID != 42 {
		t.Errorf("ref = %+v", ref)
	}

	req := requests()[0]
	if req.path != "/solution/categories/42/folders.json" {
		t.Errorf("unexpected path %s", req.path)
	}
	if v, _ := req.body["solution_folder"]["visibility"].(float64); v != 1 {
		t.Errorf("unexpected visibility in %v", req.body)
	}
}

func TestAdapter_CreateArticle(t *testing.T) {
	t.Parallel()

	client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
		return http.StatusCreated, `{"article":{"id":900,"folder_id":7,"title":"Setup"}}`
	})

	ref, err := newTestAdapter(client).Create(context.Background(), sync.Request{
		Key:    mapping.Key{Kind: mapping.KindArticle, ID: 9},
		Title:  "Setup",
		Body:   "<h1>Setup</h1>",
		Parent: &mapping.RemoteRef{ID: 7, CategoryID: 42},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ref.ID != 900 || ref.FolderID != 7 || ref.CategoryID != 42 {
		t.Errorf("ref = %+v", ref)
	}
	if !strings.HasSuffix(ref.URL, "/support/solutions/articles/900") {
		t.Errorf("unexpected url %s", ref.URL)
	}

	req := requests()[0]
	if req.path != "/solution/categories/42/folders/7/articles.json" {
		t.Errorf("unexpected path %s", req.path)
	}
	article := req.body["solution_article"]
	if article["description"] != "<h1>Setup</h1>" || article["status"] != float64(2) || article["art_type"] != float64(1) {
		t.Errorf("unexpected payload %v", article)
	}
}

func TestAdapter_CreateWithoutParentRef(t *testing.T) {
	t.Parallel()

	client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
		return http.StatusCreated, `{}`
	})

	_, err := newTestAdapter(client).Create(context.Background(), sync.Request{
		Key:   mapping.Key{Kind: mapping.KindArticle, ID: 9},
		Title: "Orphan",
	})
	if !errors.Is(err, apperrors.ErrMissingRemoteRef) {
		t.Errorf("expected ErrMissingRemoteRef, got %v", err)
	}
	if len(requests()) != 0 {
		t.Error("no request expected")
	}
}

func TestAdapter_UpdateArticleMoved(t *testing.T) {
	t.Parallel()

	client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"article":{"id":900,"folder_id":8}}`
	})

	ref, err := newTestAdapter(client).Update(context.Background(), sync.Request{
		Key:    mapping.Key{Kind: mapping.KindArticle, ID: 9},
		Title:  "Setup",
		Body:   "<p>v2</p>",
		Ref:    &mapping.RemoteRef{ID: 900, FolderID: 7, CategoryID: 42},
		Parent: &mapping.RemoteRef{ID: 8, CategoryID: 42},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ref.FolderID != 8 {
		t.Errorf("ref = %+v", ref)
	}

	req := requests()[0]
	if req.method != http.MethodPut || req.path != "/solution/categories/42/folders/7/articles/900.json" {
		t.Errorf("unexpected request %s %s", req.method, req.path)
	}
	if req.body["solution_article"]["folder_id"] != float64(8) {
		t.Errorf("move not requested: %v", req.body)
	}
}

func TestAdapter_UpdateEmptyResponseKeepsRef(t *testing.T) {
	t.Parallel()

	client, _ := fakeHelpdesk(t, func(*http.Request) (int, string) {
		return http.StatusOK, ``
	})

	ref, err := newTestAdapter(client).Update(context.Background(), sync.Request{
		Key:   mapping.Key{Kind: mapping.KindCategory, ID: 1},
		Title: "Renamed",
		Ref:   &mapping.RemoteRef{ID: 42},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ref.ID != 42 {
		t.Errorf("ref = %+v", ref)
	}
}

func TestAdapter_Delete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "deleted", status: http.StatusOK},
		{name: "already gone", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
				return tt.status, `{}`
			})

			err := newTestAdapter(client).Delete(context.Background(), sync.Request{
				Key: mapping.Key{Kind: mapping.KindFolder, ID: 3},
				Ref: &mapping.RemoteRef{ID: 7, CategoryID: 42},
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
			if req := requests()[0]; req.method != http.MethodDelete || req.path != "/solution/categories/42/folders/7.json" {
				t.Errorf("unexpected request %s %s", req.method, req.path)
			}
		})
	}
}

func TestClient_RetriesOnRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
		if calls.Add(1) < 3 {
			return http.StatusTooManyRequests, ``
		}
		return http.StatusCreated, `{"category":{"id":5}}`
	})

	ref, err := newTestAdapter(client).Create(context.Background(), sync.Request{
		Key:   mapping.Key{Kind: mapping.KindCategory, ID: 1},
		Title: "Retry",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ref.ID != 5 || len(requests()) != 3 {
		t.Errorf("ref %+v after %d requests", ref, len(requests()))
	}
	// The body must be sent again on every attempt.
	if requests()[2].body["solution_category"]["name"] != "Retry" {
		t.Errorf("retried request lost its body: %v", requests()[2].body)
	}
}

func TestClient_ErrorDecoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantText string
	}{
		{name: "single error", body: `{"errors":{"error":"Access denied"}}`, wantText: "Access denied"},
		{name: "field errors", body: `[["name","has already been taken"]]`, wantText: "name has already been taken"},
		{name: "raw body", body: `oops`, wantText: "oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, _ := fakeHelpdesk(t, func(*http.Request) (int, string) {
				return http.StatusForbidden, tt.body
			})

			_, err := client.Ping(context.Background())

			var httpErr *apperrors.HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
				t.Fatalf("expected HTTP 403 error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q does not contain %q", err, tt.wantText)
			}
		})
	}
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	client, requests := fakeHelpdesk(t, func(*http.Request) (int, string) {
		return http.StatusOK, `[{"category":{"id":1}},{"category":{"id":2}}]`
	})

	count, err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if count != 2 || requests()[0].path != "/solution/categories.json" {
		t.Errorf("count = %d, path = %s", count, requests()[0].path)
	}
}
