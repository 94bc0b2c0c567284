package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meshport/internal/logging"
)

func makeDir(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if age > 0 {
		stamp := time.Now().Add(-age)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatalf("set time: %v", err)
		}
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOnlyOldWorkspaces(t *testing.T) {
	root := t.TempDir()
	oldWS := filepath.Join(root, WorkspacePrefix+"old")
	recentWS := filepath.Join(root, WorkspacePrefix+"recent")
	foreign := filepath.Join(root, "someone-else")
	makeDir(t, oldWS, 2*time.Hour)
	makeDir(t, recentWS, 0)
	makeDir(t, foreign, 2*time.Hour)

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldWS {
		t.Fatalf("unexpected removals %v", result.Removed)
	}
	if _, err := os.Stat(oldWS); !os.IsNotExist(err) {
		t.Error("old workspace should have been removed")
	}
	for _, keep := range []string{recentWS, foreign} {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("%s should still exist", keep)
		}
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, WorkspacePrefix+"file")
	if err := os.WriteFile(file, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	stamp := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(file, stamp, stamp); err != nil {
		t.Fatalf("set time: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
}

func TestCleanStaleStopsOnCancelledContext(t *testing.T) {
	root := t.TempDir()
	makeDir(t, filepath.Join(root, WorkspacePrefix+"a"), 2*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := CleanStale(ctx, root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals after cancel, got %v", result.Removed)
	}
}

func TestListWorkspaces(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, WorkspacePrefix+"1")
	makeDir(t, ws, 0)
	makeDir(t, filepath.Join(root, "other"), 0)
	if err := os.WriteFile(filepath.Join(ws, "a.glb"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := ListWorkspaces(root)
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected 1 workspace, got %d", len(dirs))
	}
	if dirs[0].Path != ws || dirs[0].Size != 5 || dirs[0].ModTime.IsZero() {
		t.Fatalf("unexpected info %+v", dirs[0])
	}
}

func TestListWorkspacesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		dirs, err := ListWorkspaces(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if dirs != nil {
			t.Errorf("expected nil for path %q, got %v", path, dirs)
		}
	}
}
