package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meshport/internal/api"
	"meshport/internal/auxiliary"
	"meshport/internal/catalog"
	"meshport/internal/config"
	"meshport/internal/content"
	"meshport/internal/conversion"
	"meshport/internal/converter"
	"meshport/internal/ledger"
	"meshport/internal/logging"
	"meshport/internal/metadata"
	"meshport/internal/metrics"
	"meshport/internal/storage"
)

// Pipeline holds the assembled service and the resources it owns.
type Pipeline struct {
	Service   *api.Service
	Ledger    *ledger.Store
	Metrics   *metrics.Collector
	Publisher *storage.Publisher

	closers []func() error
}

type options struct {
	writer     storage.ObjectWriter
	converter  converter.Converter
	registerer prometheus.Registerer
	skipLedger bool
}

// Option customizes Build.
type Option func(*options)

// WithObjectWriter replaces the cloud object writer (tests use storage.MemoryWriter).
func WithObjectWriter(writer storage.ObjectWriter) Option {
	return func(o *options) { o.writer = writer }
}

// WithConverter replaces the CLI converter.
func WithConverter(conv converter.Converter) Option {
	return func(o *options) { o.converter = conv }
}

// WithRegisterer registers metrics against reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithoutLedger skips opening the run ledger.
func WithoutLedger() Option {
	return func(o *options) { o.skipLedger = true }
}

// Build wires every stage from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}

	p := &Pipeline{Metrics: metrics.NewCollector(o.registerer)}
	ok := false
	defer func() {
		if !ok {
			_ = p.Close()
		}
	}()

	writer := o.writer
	if writer == nil {
		creds, _, err := cfg.StorageCredentials()
		if err != nil {
			return nil, err
		}
		gcsWriter, err := storage.NewGCSWriter(ctx, creds, cfg.Storage.Bucket)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, gcsWriter.Close)
		writer = gcsWriter
	}

	publisher, err := storage.NewPublisher(writer, cfg.Storage.Bucket,
		storage.WithPublicHost(cfg.Storage.PublicHost),
		storage.WithCacheControl(cfg.Storage.CacheControl),
		storage.WithObserver(p.Metrics),
		storage.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	p.Publisher = publisher

	resolver, err := metadata.New(cfg.Metadata.APIKey, cfg.Metadata.BaseURL, seconds(cfg.Metadata.TimeoutSeconds),
		metadata.WithRateLimit(cfg.Metadata.RequestsPerSecond),
		metadata.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	downloader := content.NewClient(seconds(cfg.Content.TimeoutSeconds))
	fetcher := content.NewFetcher(cfg.Content.BaseURL, downloader, publisher, logger)

	conv := o.converter
	if conv == nil {
		conv = converter.NewCLI(
			converter.WithBinary(cfg.Converter.Binary),
			converter.WithArgs(cfg.Converter.Args...),
			converter.WithLogger(logger),
		)
	}
	orchestrator := conversion.NewOrchestrator(cfg.StagingRoot(), conversion.Dependencies{
		Downloader: downloader,
		Auxiliary:  auxiliary.NewStager(cfg.Auxiliary.BaseURL, downloader, logger),
		Converter:  conv,
		Publisher:  publisher,
		Observer:   p.Metrics,
		Logger:     logger,
	},
		conversion.WithMerge(cfg.Converter.Merge),
		conversion.WithConverterTimeout(seconds(cfg.Converter.TimeoutSeconds)),
	)

	deps := api.Dependencies{
		Resolver:  resolver,
		Fetcher:   fetcher,
		Converter: orchestrator,
		Catalog:   loadCatalog(cfg.Paths.CatalogPath, logger),
		Observer:  p.Metrics,
		Logger:    logger,
	}

	if !o.skipLedger {
		store, err := ledger.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		p.Ledger = store
		p.closers = append(p.closers, store.Close)
		deps.Ledger = store
	}

	p.Service = api.NewService(deps)
	ok = true
	return p, nil
}

// Close releases the ledger and the object-store client.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func loadCatalog(path string, logger *slog.Logger) *catalog.Catalog {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("asset catalog not found", logging.String("path", path))
			return nil
		}
		logging.WarnWithContext(logger, "asset catalog unreadable", "catalog_load_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.catalog_path contains a JSON array of tokens"),
			logging.String(logging.FieldImpact, "random token selection unavailable"),
		)
		return nil
	}
	return cat
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
