package sync_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/fclairamb/docmap/internal/mapping"
	"github.com/fclairamb/docmap/internal/sync"
	"github.com/fclairamb/docmap/internal/sync/mocks"
)

type fakeRepo struct {
	pulls     int
	commits   []string
	pushes    int
	pushErrs  []error
	commitErr error
}

func (f *fakeRepo) Pull(context.Context) error {
	f.pulls++
	return nil
}

func (f *fakeRepo) Commit(_ context.Context, message string) (bool, error) {
	if f.commitErr != nil {
		return false, f.commitErr
	}
	f.commits = append(f.commits, message)
	return true, nil
}

func (f *fakeRepo) Push(context.Context) error {
	f.pushes++
	if len(f.pushErrs) > 0 {
		err := f.pushErrs[0]
		f.pushErrs = f.pushErrs[1:]
		return err
	}
	return nil
}

func initMapping(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "mappings")
	if err := mapping.Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return dir
}

func TestRunner_FullPass(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)
	next := int64(0)
	adapter.EXPECT().Create(gomock.Any(), gomock.Any()).Times(3).
		DoAndReturn(func(context.Context, sync.Request) (*mapping.RemoteRef, error) {
			next++
			return &mapping.RemoteRef{ID: next}, nil
		})

	root := contentTree(t)
	mappingDir := initMapping(t)
	repo := &fakeRepo{}

	runner := sync.NewRunner(
		sync.NewEngine(root, sync.WithEngineLogger(quietLogger())),
		mappingDir,
		sync.WithRunnerLogger(quietLogger()),
		sync.WithPusher(sync.NewPusher(adapter, sync.WithPusherLogger(quietLogger()))),
		sync.WithRepository(repo, true, true),
	)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.PassID == "" {
		t.Error("pass id not set")
	}
	if !report.Changed || !report.Committed || !report.Published {
		t.Errorf("unexpected report %+v", report)
	}
	if repo.pulls != 1 || len(repo.commits) != 1 || repo.pushes != 1 {
		t.Errorf("repo calls: pulls=%d commits=%d pushes=%d", repo.pulls, len(repo.commits), repo.pushes)
	}
	if !strings.Contains(repo.commits[0], report.PassID) {
		t.Errorf("commit message %q lacks the pass id", repo.commits[0])
	}

	st, err := mapping.Load(mappingDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ref := st.Entry(articleKey).Remote; ref == nil || ref.ID != 3 {
		t.Errorf("persisted article ref = %+v", ref)
	}

	// Nothing changed: no remote call, no commit.
	report, err = runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if report.Changed || len(repo.commits) != 1 {
		t.Errorf("idle pass changed something: %+v", report)
	}
}

func TestRunner_PurgesConfirmedDeletes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mappingDir := initMapping(t)

	st := mapping.New()
	st.Categories.Put(2, &mapping.Category{Entry: mapping.Entry{Title: "Gone"}})
	st.Counters.Category = 2
	if err := st.Save(mappingDir); err != nil {
		t.Fatal(err)
	}

	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)

	runner := sync.NewRunner(
		sync.NewEngine(root, sync.WithEngineLogger(quietLogger())),
		mappingDir,
		sync.WithRunnerLogger(quietLogger()),
		sync.WithPusher(sync.NewPusher(adapter, sync.WithPusherLogger(quietLogger()))),
	)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Purged != 1 {
		t.Errorf("Purged = %d, want 1", report.Purged)
	}

	loaded, err := mapping.Load(mappingDir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Categories.Has(2) {
		t.Error("purged record persisted")
	}
	if loaded.Counters.Category != 2 {
		t.Errorf("counter went back to %d", loaded.Counters.Category)
	}
}

func TestRunner_WithoutPusherKeepsDeletes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mappingDir := initMapping(t)

	st := mapping.New()
	st.Categories.Put(1, &mapping.Category{Entry: mapping.Entry{Title: "Gone", Remote: &mapping.RemoteRef{ID: 9}}})
	st.Counters.Category = 1
	if err := st.Save(mappingDir); err != nil {
		t.Fatal(err)
	}

	runner := sync.NewRunner(
		sync.NewEngine(root, sync.WithEngineLogger(quietLogger())),
		mappingDir,
		sync.WithRunnerLogger(quietLogger()),
	)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Push != nil || report.Purged != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Result.Action(categoryKey) != sync.ActionDelete {
		t.Errorf("category classified %s", report.Result.Action(categoryKey))
	}

	loaded, err := mapping.Load(mappingDir)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Categories.Has(1) {
		t.Error("record deleted without remote confirmation")
	}
}

func TestRunner_PushRetry(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "New"), 0o750); err != nil {
		t.Fatal(err)
	}
	repo := &fakeRepo{pushErrs: []error{errors.New("rejected"), errors.New("rejected")}}

	runner := sync.NewRunner(
		sync.NewEngine(root, sync.WithEngineLogger(quietLogger())),
		initMapping(t),
		sync.WithRunnerLogger(quietLogger()),
		sync.WithRepository(repo, true, true),
		sync.WithPushRetry(3, time.Millisecond),
	)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Published || repo.pushes != 3 {
		t.Errorf("published=%v after %d pushes", report.Published, repo.pushes)
	}
}

func TestRunner_PushGivesUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "New"), 0o750); err != nil {
		t.Fatal(err)
	}
	rejected := errors.New("rejected")
	repo := &fakeRepo{pushErrs: []error{rejected, rejected, rejected}}

	runner := sync.NewRunner(
		sync.NewEngine(root, sync.WithEngineLogger(quietLogger())),
		initMapping(t),
		sync.WithRunnerLogger(quietLogger()),
		sync.WithRepository(repo, true, true),
		sync.WithPushRetry(2, time.Millisecond),
	)

	report, err := runner.Run(context.Background())
	if !errors.Is(err, rejected) {
		t.Fatalf("expected push error, got %v", err)
	}
	if report == nil || !report.Committed || report.Published {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestRunner_CommitDisabled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "New"), 0o750); err != nil {
		t.Fatal(err)
	}
	repo := &fakeRepo{}

	runner := sync.NewRunner(
		sync.NewEngine(root, sync.WithEngineLogger(quietLogger())),
		initMapping(t),
		sync.WithRunnerLogger(quietLogger()),
		sync.WithRepository(repo, false, false),
	)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Changed || report.Committed || len(repo.commits) != 0 || repo.pulls != 1 {
		t.Errorf("unexpected report %+v, repo %+v", report, repo)
	}
}

func TestRunner_CorruptMappingAborts(t *testing.T) {
	t.Parallel()

	mappingDir := initMapping(t)
	if err := os.WriteFile(filepath.Join(mappingDir, "counters.yaml"), []byte("category: [nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "New"), 0o750); err != nil {
		t.Fatal(err)
	}

	runner := sync.NewRunner(
		sync.NewEngine(root, sync.WithEngineLogger(quietLogger())),
		mappingDir,
		sync.WithRunnerLogger(quietLogger()),
	)

	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if _, err := os.Stat(filepath.Join(root, "New")); err != nil {
		t.Error("tree must not be touched when the mapping cannot be loaded")
	}
}

func TestReport_PendingIsSortedAndUnique(t *testing.T) {
	t.Parallel()

	folder := mapping.Key{Kind: mapping.KindFolder, ID: 3}
	article := mapping.Key{Kind: mapping.KindArticle, ID: 7}
	category := mapping.Key{Kind: mapping.KindCategory, ID: 1}

	report := &sync.Report{
		Result: &sync.Result{Held: []mapping.Key{article, folder}, Deferred: []mapping.Key{category}},
		Push:   &sync.PushResult{Deferred: []mapping.Key{article, folder}},
	}

	got := report.Pending()
	want := []mapping.Key{category, folder, article}
	if len(got) != len(want) {
		t.Fatalf("Pending = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pending[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if (&sync.Report{}).Pending() != nil {
		t.Error("report without result must have nothing pending")
	}
}
