package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"meshport/internal/logging"
)

// WorkspacePrefix names every per-invocation workspace directory.
const WorkspacePrefix = "meshport-"

// Workspace is a private directory holding one conversion's staged files.
type Workspace struct {
	Dir     string
	AssetID string
}

// NewWorkspace creates {root}/meshport-{uuid} for assetID.
func NewWorkspace(root, assetID string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = os.TempDir()
	}
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, errors.New("asset id required")
	}
	if strings.ContainsAny(assetID, `/\`) || assetID == "." || assetID == ".." {
		return nil, fmt.Errorf("asset id %q is not a valid file name", assetID)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	dir := filepath.Join(root, WorkspacePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir, AssetID: assetID}, nil
}

// SourcePath is the staged scene description.
func (w *Workspace) SourcePath() string { return filepath.Join(w.Dir, w.AssetID+".gltf") }

// BinaryPath is the converter output.
func (w *Workspace) BinaryPath() string { return filepath.Join(w.Dir, w.AssetID+".glb") }

// DescriptorPath is the staged MML descriptor.
func (w *Workspace) DescriptorPath() string { return filepath.Join(w.Dir, w.AssetID+".mml") }

// DataDir holds converter-side auxiliary resources.
func (w *Workspace) DataDir() string { return filepath.Join(w.Dir, "data") }

// AuxiliaryPath is the staged skeleton resource.
func (w *Workspace) AuxiliaryPath() string { return filepath.Join(w.DataDir(), "skeleton.glb") }

// WriteFile stages data at path inside the workspace.
func (w *Workspace) WriteFile(path string, data []byte) error {
	if !strings.HasPrefix(path, w.Dir+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside workspace %s", path, w.Dir)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	return nil
}

// CleanupReport lists what Cleanup removed and what it could not.
type CleanupReport struct {
	Removed  []string
	Warnings []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Cleanup removes the staged files, the auxiliary resource and the workspace
// itself. Missing files are not failures. Failures are logged as warnings and
// reported, never returned.
func (w *Workspace) Cleanup(logger *slog.Logger) CleanupReport {
	var report CleanupReport
	if w == nil || strings.TrimSpace(w.Dir) == "" {
		return report
	}

	steps := []struct {
		path   string
		remove func(string) error
	}{
		{w.SourcePath(), os.Remove},
		{w.BinaryPath(), os.Remove},
		{w.DescriptorPath(), os.Remove},
		{w.AuxiliaryPath(), os.Remove},
		{w.DataDir(), removeIfEmpty},
		{w.Dir, os.RemoveAll},
	}
	for _, step := range steps {
		err := step.remove(step.path)
		switch {
		case err == nil:
			report.Removed = append(report.Removed, step.path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			report.Warnings = append(report.Warnings, CleanupError{Path: step.path, Error: err})
			logging.CleanupWarning(logger, "failed to remove staged file", step.path, err,
				logging.String(logging.FieldAssetID, w.AssetID))
		}
	}
	return report
}

func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(dir)
}
