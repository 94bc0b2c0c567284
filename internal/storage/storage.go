package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"meshport/internal/logging"
	"meshport/internal/services"
)

const (
	// DefaultContentType is applied when callers do not specify one.
	DefaultContentType = "application/octet-stream"
	// DefaultCacheControl marks published artifacts as immutable for a year.
	DefaultCacheControl = "public, max-age=31536000"
	// DefaultPublicHost serves objects for the public URL.
	DefaultPublicHost = "storage.googleapis.com"
)

// ObjectAttrs carries the metadata written alongside an object.
type ObjectAttrs struct {
	ContentType  string
	CacheControl string
}

// ObjectWriter stores bytes under a key, replacing any existing object.
type ObjectWriter interface {
	WriteObject(ctx context.Context, key string, data []byte, attrs ObjectAttrs) error
}

// PublishObserver receives a callback for every successful upload.
type PublishObserver interface {
	ObservePublish(contentType string, bytes int)
}

// Publisher uploads artifacts and derives their public URLs.
type Publisher struct {
	writer       ObjectWriter
	bucket       string
	publicHost   string
	cacheControl string
	observer     PublishObserver
	logger       *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPublicHost overrides the host used in returned URLs. A value with a
// scheme ("http://127.0.0.1:9000") replaces the https://host prefix entirely.
func WithPublicHost(host string) Option {
	return func(p *Publisher) {
		if host = strings.TrimRight(strings.TrimSpace(host), "/"); host != "" {
			p.publicHost = host
		}
	}
}

// WithCacheControl overrides the cache directive stored with each object.
func WithCacheControl(value string) Option {
	return func(p *Publisher) {
		if value = strings.TrimSpace(value); value != "" {
			p.cacheControl = value
		}
	}
}

// WithObserver registers a publish observer (metrics).
func WithObserver(observer PublishObserver) Option {
	return func(p *Publisher) {
		p.observer = observer
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher constructs a Publisher writing into bucket through writer.
func NewPublisher(writer ObjectWriter, bucket string, opts ...Option) (*Publisher, error) {
	if writer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init", "object writer is required", nil)
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init",
			"storage.bucket is required (set GCS_BUCKET_NAME)", nil)
	}
	p := &Publisher{
		writer:       writer,
		bucket:       bucket,
		publicHost:   DefaultPublicHost,
		cacheControl: DefaultCacheControl,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = logging.NewComponentLogger(p.logger, "storage")
	return p, nil
}

// Publish uploads data under key and returns its public URL. An existing
// object with the same key is overwritten.
func (p *Publisher) Publish(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", services.Wrap(services.ErrDataShape, "storage", "publish", "object key is required", nil)
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = DefaultContentType
	}
	attrs := ObjectAttrs{ContentType: contentType, CacheControl: p.cacheControl}
	if err := p.writer.WriteObject(ctx, key, data, attrs); err != nil {
		return "", services.Wrap(services.ErrTransport, "storage", "publish", fmt.Sprintf("upload %s: %v", key, err), err)
	}
	if p.observer != nil {
		p.observer.ObservePublish(contentType, len(data))
	}
	url := p.URL(key)
	p.logger.Debug("object published",
		logging.String("key", key),
		logging.String("content_type", contentType),
		logging.Int("bytes", len(data)),
		logging.String("url", url),
	)
	return url, nil
}

// URL returns the public URL for key. It does not contact the store.
func (p *Publisher) URL(key string) string {
	base := p.publicHost
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/%s/%s", base, p.bucket, strings.TrimLeft(key, "/"))
}

// Bucket reports the configured bucket name.
func (p *Publisher) Bucket() string {
	return p.bucket
}
