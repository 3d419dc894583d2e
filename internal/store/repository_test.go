package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()

	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestRepository_LocalCommit(t *testing.T) {
	t.Parallel()

	tmpDir, err := os.MkdirTemp("", "store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	repo, err := Open(tmpDir, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	ctx := context.Background()

	committed, err := repo.Commit(ctx, "empty")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed {
		t.Error("nothing should be committed in an empty working copy")
	}

	when, err := repo.LastCommit()
	if err != nil || !when.IsZero() {
		t.Errorf("LastCommit on empty repo = %v, %v", when, err)
	}

	writeTestFile(t, tmpDir, "articles/Networking--DOCID1/Routers--DOCID1/Setup--DOCID1.md", "# Setup\n")
	writeTestFile(t, tmpDir, "mappings/counters.yaml", "category: 1\n")

	changes, err := repo.Changes()
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	if len(changes) != 2 || changes[0] != "articles/Networking--DOCID1/Routers--DOCID1/Setup--DOCID1.md" {
		t.Errorf("Changes = %v", changes)
	}

	committed, err = repo.Commit(ctx, "[docmap] update")
	if err != nil || !committed {
		t.Fatalf("Commit = %v, %v", committed, err)
	}

	changes, _ = repo.Changes()
	if len(changes) != 0 {
		t.Errorf("working copy not clean after commit: %v", changes)
	}
	if when, _ := repo.LastCommit(); when.IsZero() {
		t.Error("LastCommit not set after commit")
	}

	// Renames are staged as well.
	if err := os.Rename(
		filepath.Join(tmpDir, "mappings", "counters.yaml"),
		filepath.Join(tmpDir, "mappings", "counters.yml"),
	); err != nil {
		t.Fatal(err)
	}
	if committed, err := repo.Commit(ctx, "rename"); err != nil || !committed {
		t.Errorf("Commit after rename = %v, %v", committed, err)
	}
}

func TestRepository_OpenExisting(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	first, err := Open(tmpDir, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, tmpDir, "a.md", "a")
	if _, err := first.Commit(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}

	second, err := Open(tmpDir, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if when, _ := second.LastCommit(); when.IsZero() {
		t.Error("reopened repository lost its history")
	}
}

func TestRepository_NoRemoteIsNoop(t *testing.T) {
	t.Parallel()

	repo, err := Open(t.TempDir(), WithLogger(quietLogger()), WithRemoteConfig(&RemoteConfig{Branch: "main"}))
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Pull(context.Background()); err != nil {
		t.Errorf("Pull without remote: %v", err)
	}
	if err := repo.Push(context.Background()); err != nil {
		t.Errorf("Push without remote: %v", err)
	}
}

func TestRepository_PushAndPull(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	barePath := filepath.Join(base, "remote.git")
	bare, err := git.PlainInit(barePath, true)
	if err != nil {
		t.Fatalf("init bare: %v", err)
	}

	cfg := &RemoteConfig{
		Storage:  StorageModeRemote,
		URL:      barePath,
		Password: "unused",
		Branch:   "main",
		User:     "docmap",
		Email:    "docmap@localhost",
		Commit:   true,
	}
	ctx := context.Background()

	writer, err := Open(filepath.Join(base, "writer"), WithLogger(quietLogger()), WithRemoteConfig(cfg))
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	writeTestFile(t, writer.Root(), "articles/Ops--DOCID1/.keep", "")
	if _, err := writer.Commit(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if err := writer.Push(ctx); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if _, err := bare.Reference(plumbing.NewBranchReferenceName("main"), true); err != nil {
		t.Fatalf("branch not published: %v", err)
	}

	reader, err := Open(filepath.Join(base, "reader"), WithLogger(quietLogger()), WithRemoteConfig(cfg))
	if err != nil {
		t.Fatalf("clone reader: %v", err)
	}
	if _, err := os.Stat(filepath.Join(reader.Root(), "articles", "Ops--DOCID1", ".keep")); err != nil {
		t.Errorf("clone missing content: %v", err)
	}

	writeTestFile(t, writer.Root(), "mappings/categories.yaml", "1:\n  title: Ops\n")
	if _, err := writer.Commit(ctx, "second"); err != nil {
		t.Fatal(err)
	}
	if err := writer.Push(ctx); err != nil {
		t.Fatal(err)
	}

	if err := reader.Pull(ctx); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(reader.Root(), "mappings", "categories.yaml")); err != nil {
		t.Errorf("pull did not bring the new file: %v", err)
	}
	if err := reader.Pull(ctx); err != nil {
		t.Errorf("Pull when up to date: %v", err)
	}
}

func TestRepository_PushToReviewRef(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	barePath := filepath.Join(base, "remote.git")
	bare, err := git.PlainInit(barePath, true)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &RemoteConfig{
		Storage:  StorageModeRemote,
		URL:      barePath,
		Password: "unused",
		Branch:   "main",
		PushRef:  "refs/heads/review",
		User:     "docmap",
		Email:    "docmap@localhost",
	}

	repo, err := Open(filepath.Join(base, "work"), WithLogger(quietLogger()), WithRemoteConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, repo.Root(), "a.md", "a")
	if _, err := repo.Commit(context.Background(), "change"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if _, err := bare.Reference("refs/heads/review", true); err != nil {
		t.Errorf("review ref not pushed: %v", err)
	}
	if _, err := bare.Reference(plumbing.NewBranchReferenceName("main"), true); err == nil {
		t.Error("tracked branch must not be pushed when a push ref is set")
	}
}
