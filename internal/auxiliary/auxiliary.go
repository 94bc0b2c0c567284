// Package auxiliary stages converter-side inputs (the shared skeleton model)
// into a conversion workspace.
package auxiliary

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"meshport/internal/content"
	"meshport/internal/logging"
	"meshport/internal/services"
)

const (
	// DefaultBaseURL serves auxiliary resources when HOST_DOMAIN is unset.
	DefaultBaseURL = "http://localhost:3000"
	// RelativePath is where the converter expects the skeleton, relative to its working directory.
	RelativePath = "data/skeleton.glb"
)

// Downloader fetches raw bytes from a URL.
type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// Stager downloads the skeleton resource into workspaces.
type Stager struct {
	baseURL    string
	downloader Downloader
	logger     *slog.Logger
}

// NewStager builds a Stager against baseURL.
func NewStager(baseURL string, downloader Downloader, logger *slog.Logger) *Stager {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Stager{
		baseURL:    baseURL,
		downloader: downloader,
		logger:     logging.NewComponentLogger(logger, "auxiliary"),
	}
}

// SourceURL returns the remote skeleton location.
func (s *Stager) SourceURL() string {
	return s.baseURL + "/" + RelativePath
}

// Stage writes the skeleton to {dir}/data/skeleton.glb and returns that path.
// A failed stage leaves no partial file behind.
func (s *Stager) Stage(ctx context.Context, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", services.Wrap(services.ErrDataShape, "auxiliary", "stage", "workspace directory is required", nil)
	}
	target := filepath.Join(dir, filepath.FromSlash(RelativePath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", services.Wrap(services.ErrConversion, "auxiliary", "stage", "create data directory", err)
	}

	source := s.SourceURL()
	s.logger.Debug("fetching auxiliary resource", logging.String("url", source))
	data, err := s.downloader.Download(ctx, source)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "auxiliary", "stage",
			fmt.Sprintf("failed to fetch skeleton.glb from %s: %s", source, content.DescribeFailure(err)), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".skeleton-*")
	if err != nil {
		return "", services.Wrap(services.ErrConversion, "auxiliary", "stage", "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrConversion, "auxiliary", "stage", "write skeleton", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrConversion, "auxiliary", "stage", "close skeleton", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrConversion, "auxiliary", "stage", "move skeleton into place", err)
	}
	return target, nil
}
