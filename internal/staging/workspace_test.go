package staging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"meshport/internal/logging"
	"meshport/internal/staging"
)

func TestNewWorkspaceIsUniquePerInvocation(t *testing.T) {
	root := t.TempDir()
	a, err := staging.NewWorkspace(root, "asset")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	b, err := staging.NewWorkspace(root, "asset")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if a.Dir == b.Dir {
		t.Fatalf("workspaces collide: %s", a.Dir)
	}
	if !strings.HasPrefix(filepath.Base(a.Dir), staging.WorkspacePrefix) {
		t.Fatalf("unexpected workspace name %s", a.Dir)
	}
	if a.SourcePath() != filepath.Join(a.Dir, "asset.gltf") ||
		a.BinaryPath() != filepath.Join(a.Dir, "asset.glb") ||
		a.DescriptorPath() != filepath.Join(a.Dir, "asset.mml") ||
		a.AuxiliaryPath() != filepath.Join(a.Dir, "data", "skeleton.glb") {
		t.Fatalf("unexpected paths for %+v", a)
	}
}

func TestNewWorkspaceRejectsBadAssetIDs(t *testing.T) {
	for _, id := range []string{"", " ", "../x", "a/b", ".."} {
		if _, err := staging.NewWorkspace(t.TempDir(), id); err == nil {
			t.Errorf("expected error for asset id %q", id)
		}
	}
}

func TestCleanupRemovesEverything(t *testing.T) {
	ws, err := staging.NewWorkspace(t.TempDir(), "a1")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if err := os.MkdirAll(ws.DataDir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, p := range []string{ws.SourcePath(), ws.BinaryPath(), ws.DescriptorPath(), ws.AuxiliaryPath()} {
		if err := ws.WriteFile(p, []byte("x")); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	report := ws.Cleanup(logging.NewNop())
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings %+v", report.Warnings)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("workspace still present: %v", err)
	}
}

func TestCleanupToleratesMissingFiles(t *testing.T) {
	ws, err := staging.NewWorkspace(t.TempDir(), "a1")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if err := ws.WriteFile(ws.SourcePath(), []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	report := ws.Cleanup(logging.NewNop())
	if len(report.Warnings) != 0 {
		t.Fatalf("missing files should not warn: %+v", report.Warnings)
	}
	again := ws.Cleanup(logging.NewNop())
	if len(again.Warnings) != 0 {
		t.Fatalf("second cleanup should be a no-op: %+v", again.Warnings)
	}
}

func TestCleanupLogsWarningOnFailure(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission-based failure not reproducible")
	}
	ws, err := staging.NewWorkspace(t.TempDir(), "a1")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if err := ws.WriteFile(ws.SourcePath(), []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chmod(ws.Dir, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(ws.Dir, 0o755) })

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	report := ws.Cleanup(logger)
	if len(report.Warnings) == 0 {
		t.Fatal("expected cleanup warnings")
	}

	line := strings.SplitN(buf.String(), "\n", 2)[0]
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if payload["level"] != "warn" || payload[logging.FieldEventType] != "staging_cleanup_failed" {
		t.Fatalf("unexpected log payload %v", payload)
	}
}

func TestWriteFileRejectsOutsidePaths(t *testing.T) {
	ws, err := staging.NewWorkspace(t.TempDir(), "a1")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if err := ws.WriteFile(filepath.Join(t.TempDir(), "x"), nil); err == nil {
		t.Fatal("expected error for path outside workspace")
	}
}
