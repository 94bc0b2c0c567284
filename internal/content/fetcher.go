package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"meshport/internal/logging"
	"meshport/internal/services"
)

// GLTFContentType labels published scene descriptions.
const GLTFContentType = "model/gltf+json"

const stage = "content"

// Downloader fetches raw bytes from a URL.
type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// Publisher stores bytes under a key and returns a public URL.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Fetcher republishes an asset's scene description.
type Fetcher struct {
	baseURL    string
	downloader Downloader
	publisher  Publisher
	logger     *slog.Logger
}

// NewFetcher wires a Fetcher against the content host at baseURL.
func NewFetcher(baseURL string, downloader Downloader, publisher Publisher, logger *slog.Logger) *Fetcher {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fetcher{
		baseURL:    baseURL,
		downloader: downloader,
		publisher:  publisher,
		logger:     logging.NewComponentLogger(logger, stage),
	}
}

// SourceURL returns the content-host location of assetID's description.
func (f *Fetcher) SourceURL(assetID string) string {
	return fmt.Sprintf("%s/assets/%s/gltf", f.baseURL, assetID)
}

// Fetch downloads the description for assetID and publishes the unmodified
// bytes as {assetID}.gltf. Nothing is published when the download fails.
func (f *Fetcher) Fetch(ctx context.Context, assetID string) (string, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return "", services.Wrap(services.ErrDataShape, stage, "fetch", "asset id is required", nil)
	}
	logger := f.logger.With(logging.String(logging.FieldAssetID, assetID))

	source := f.SourceURL(assetID)
	logger.Info("downloading scene description", logging.String("url", source))
	data, err := f.downloader.Download(ctx, source)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, stage, "fetch",
			fmt.Sprintf("failed to fetch scene description for asset %s: %s", assetID, DescribeFailure(err)), err)
	}

	url, err := f.publisher.Publish(ctx, assetID+".gltf", data, GLTFContentType)
	if err != nil {
		return "", err
	}
	logger.Info("scene description published", logging.String("url", url), logging.Int("bytes", len(data)))
	return url, nil
}
