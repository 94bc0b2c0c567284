package conversion

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"os"
	"strings"
	"time"

	"meshport/internal/content"
	"meshport/internal/converter"
	"meshport/internal/logging"
	"meshport/internal/services"
	"meshport/internal/staging"
)

// Content types of published artifacts.
const (
	BinaryContentType     = "model/gltf-binary"
	DescriptorContentType = "text/html; charset=utf-8"
)

// ConversionFailedMessage is the caller-facing text for converter failures.
const ConversionFailedMessage = "conversion failed"

const stage = "conversion"

// Downloader fetches raw bytes from a URL.
type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// Publisher stores bytes under a key and returns a public URL.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// AuxiliaryStager places converter-side resources into a workspace.
type AuxiliaryStager interface {
	Stage(ctx context.Context, dir string) (string, error)
}

// CleanupObserver is told how many staged files were left behind.
type CleanupObserver interface {
	ObserveCleanupWarnings(n int)
}

// Result holds the published artifact URLs.
type Result struct {
	GLBURL string
	MMLURL string
}

// Dependencies groups the collaborators an Orchestrator needs.
type Dependencies struct {
	Downloader Downloader
	Auxiliary  AuxiliaryStager
	Converter  converter.Converter
	Publisher  Publisher
	Observer   CleanupObserver
	Logger     *slog.Logger
}

// Orchestrator runs conversions.
type Orchestrator struct {
	deps             Dependencies
	stagingRoot      string
	merge            bool
	converterTimeout time.Duration
	logger           *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMerge toggles the converter merge flag (default true).
func WithMerge(merge bool) Option {
	return func(o *Orchestrator) { o.merge = merge }
}

// WithConverterTimeout bounds each converter invocation.
func WithConverterTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.converterTimeout = timeout
		}
	}
}

// NewOrchestrator wires an Orchestrator that stages under stagingRoot.
func NewOrchestrator(stagingRoot string, deps Dependencies, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:        deps,
		stagingRoot: stagingRoot,
		merge:       true,
		logger:      logging.NewComponentLogger(deps.Logger, stage),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Convert produces and publishes {assetID}.glb and {assetID}.mml from the
// description at sourceURL. Either both URLs are returned or an error is.
func (o *Orchestrator) Convert(ctx context.Context, assetID, sourceURL string) (Result, error) {
	assetID = strings.TrimSpace(assetID)
	sourceURL = strings.TrimSpace(sourceURL)
	if assetID == "" {
		return Result{}, services.Wrap(services.ErrDataShape, stage, "validate", "asset id is required", nil)
	}
	if sourceURL == "" {
		return Result{}, services.Wrap(services.ErrDataShape, stage, "validate", "source url is required", nil)
	}
	ctx = services.WithAssetID(services.WithStage(ctx, stage), assetID)
	logger := logging.WithContext(ctx, o.logger)

	logger.Info("conversion started", logging.String("source_url", sourceURL))
	source, err := o.deps.Downloader.Download(ctx, sourceURL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransport, stage, "download source",
			fmt.Sprintf("failed to fetch scene description for asset %s: %s", assetID, content.DescribeFailure(err)), err)
	}

	ws, err := staging.NewWorkspace(o.stagingRoot, assetID)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConversion, stage, "stage workspace", "failed to create staging workspace", err)
	}
	defer o.cleanup(ws, logger)

	if err := ws.WriteFile(ws.SourcePath(), source); err != nil {
		return Result{}, services.Wrap(services.ErrConversion, stage, "stage source", "failed to stage scene description", err)
	}

	if _, err := o.deps.Auxiliary.Stage(ctx, ws.Dir); err != nil {
		return Result{}, err
	}

	if err := o.runConverter(ctx, ws); err != nil {
		logging.WarnWithContext(logger, "converter failed", "conversion_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run the converter manually against the staged description"),
			logging.String(logging.FieldImpact, "no binary or descriptor published"),
		)
		return Result{}, services.Wrap(services.ErrConversion, stage, "convert", ConversionFailedMessage, err)
	}

	binary, err := os.ReadFile(ws.BinaryPath())
	if err != nil {
		return Result{}, services.Wrap(services.ErrConversion, stage, "read output", ConversionFailedMessage, err)
	}
	glbURL, err := o.deps.Publisher.Publish(ctx, assetID+".glb", binary, BinaryContentType)
	if err != nil {
		return Result{}, err
	}

	descriptor := []byte(BuildDescriptor(glbURL))
	if err := ws.WriteFile(ws.DescriptorPath(), descriptor); err != nil {
		return Result{}, services.Wrap(services.ErrConversion, stage, "stage descriptor", "failed to stage descriptor", err)
	}
	mmlURL, err := o.deps.Publisher.Publish(ctx, assetID+".mml", descriptor, DescriptorContentType)
	if err != nil {
		return Result{}, err
	}

	logger.Info("conversion completed",
		logging.String("glb_url", glbURL),
		logging.String("mml_url", mmlURL),
		logging.Int("glb_bytes", len(binary)),
	)
	return Result{GLBURL: glbURL, MMLURL: mmlURL}, nil
}

// runConverter invokes the converter and treats errors, panics and a missing
// or empty output file alike.
func (o *Orchestrator) runConverter(ctx context.Context, ws *staging.Workspace) (err error) {
	if o.deps.Converter == nil {
		return fmt.Errorf("no converter configured")
	}
	if o.converterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.converterTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()

	req := converter.Request{
		InputPath:  ws.SourcePath(),
		OutputPath: ws.BinaryPath(),
		Merge:      o.merge,
		WorkDir:    ws.Dir,
	}
	if err := o.deps.Converter.Convert(ctx, req); err != nil {
		return err
	}
	return converter.VerifyOutput(req.OutputPath)
}

func (o *Orchestrator) cleanup(ws *staging.Workspace, logger *slog.Logger) {
	report := ws.Cleanup(logger)
	if o.deps.Observer != nil {
		o.deps.Observer.ObserveCleanupWarnings(len(report.Warnings))
	}
}

// BuildDescriptor renders the MML document that references glbURL.
func BuildDescriptor(glbURL string) string {
	return `<m-character src="` + html.EscapeString(glbURL) + `"></m-character>`
}
