package api

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"meshport/internal/catalog"
	"meshport/internal/conversion"
	"meshport/internal/ledger"
	"meshport/internal/logging"
	"meshport/internal/services"
)

// Stage names used for metrics and log context.
const (
	StageResolve = "resolve"
	StageFetch   = "fetch"
	StageConvert = "convert"
)

// Resolver maps a token to an asset id.
type Resolver interface {
	Resolve(ctx context.Context, contractID, tokenID string) (string, error)
}

// DescriptionFetcher republishes an asset's scene description.
type DescriptionFetcher interface {
	Fetch(ctx context.Context, assetID string) (string, error)
}

// Converter turns a published description into a published binary and descriptor.
type Converter interface {
	Convert(ctx context.Context, assetID, sourceURL string) (conversion.Result, error)
}

// Ledger records pipeline runs.
type Ledger interface {
	Begin(ctx context.Context, contractID, tokenID, correlationID string) (*ledger.Record, error)
	Update(ctx context.Context, record *ledger.Record) error
	List(ctx context.Context, statuses ...ledger.Status) ([]*ledger.Record, error)
	LatestForAsset(ctx context.Context, assetID string) (*ledger.Record, error)
	ClearFailed(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
}

// StageObserver records stage outcomes.
type StageObserver interface {
	ObserveStage(stage string, err error, duration time.Duration)
}

// Dependencies groups the collaborators of a Service. Ledger, Catalog and
// Observer are optional.
type Dependencies struct {
	Resolver  Resolver
	Fetcher   DescriptionFetcher
	Converter Converter
	Ledger    Ledger
	Catalog   *catalog.Catalog
	Observer  StageObserver
	Logger    *slog.Logger
	Rand      *rand.Rand
}

// Service implements the caller-facing operations.
type Service struct {
	deps     Dependencies
	logger   *slog.Logger
	inflight singleflight.Group
}

// NewService constructs a Service.
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "api"),
	}
}

// Resolve maps a token to its asset id.
func (s *Service) Resolve(ctx context.Context, contractID, tokenID string) ResolveResponse {
	ctx = withRequestID(ctx)
	assetID, err := s.resolve(ctx, contractID, tokenID)
	if err != nil {
		return ResolveResponse{Failure: failure(err)}
	}
	return ResolveResponse{AssetID: assetID}
}

// FetchDescription republishes the asset's scene description.
func (s *Service) FetchDescription(ctx context.Context, assetID string) FetchResponse {
	ctx = withRequestID(ctx)
	url, err := s.fetch(ctx, assetID)
	if err != nil {
		return FetchResponse{Failure: failure(err)}
	}
	return FetchResponse{URL: url}
}

// Convert converts the description at url. Concurrent calls for the same
// asset id and url share one execution.
func (s *Service) Convert(ctx context.Context, assetID, url string) ConvertResponse {
	ctx = withRequestID(ctx)
	result, err := s.convert(ctx, assetID, url)
	if err != nil {
		return ConvertResponse{Failure: failure(err)}
	}
	return ConvertResponse{GLBURL: result.GLBURL, MMLURL: result.MMLURL}
}

// Run performs resolve, fetch and convert for a token and records the run
// in the ledger.
func (s *Service) Run(ctx context.Context, contractID, tokenID string) PipelineResponse {
	ctx = withRequestID(ctx)
	requestID, _ := services.RequestIDFromContext(ctx)
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldContractID, contractID),
		logging.String(logging.FieldTokenID, tokenID),
	)

	record := s.beginRun(ctx, logger, contractID, tokenID, requestID)
	resp := PipelineResponse{}
	if record != nil {
		resp.RunID = record.ID
	}

	fail := func(err error) PipelineResponse {
		resp.Failure = failure(err)
		if record != nil {
			record.Fail(resp.ErrorKind, resp.Error)
			s.saveRun(ctx, logger, record)
		}
		logger.Info("pipeline run failed",
			logging.String("error_kind", resp.ErrorKind),
			logging.String("error_message", resp.Error),
			logging.String(logging.FieldEventType, "pipeline_failed"),
		)
		return PipelineResponse{RunID: resp.RunID, Failure: resp.Failure}
	}

	assetID, err := s.resolve(ctx, contractID, tokenID)
	if err != nil {
		return fail(err)
	}
	resp.AssetID = assetID
	s.advance(ctx, logger, record, ledger.StatusFetching, func(r *ledger.Record) { r.AssetID = assetID })

	gltfURL, err := s.fetch(ctx, assetID)
	if err != nil {
		return fail(err)
	}
	resp.GLTFURL = gltfURL
	s.advance(ctx, logger, record, ledger.StatusConverting, func(r *ledger.Record) { r.GLTFURL = gltfURL })

	result, err := s.convert(ctx, assetID, gltfURL)
	if err != nil {
		return fail(err)
	}
	resp.GLBURL = result.GLBURL
	resp.MMLURL = result.MMLURL
	s.advance(ctx, logger, record, ledger.StatusCompleted, func(r *ledger.Record) {
		r.GLBURL = result.GLBURL
		r.MMLURL = result.MMLURL
	})

	logger.Info("pipeline run completed",
		logging.String(logging.FieldAssetID, assetID),
		logging.String("mml_url", result.MMLURL),
		logging.String(logging.FieldEventType, "pipeline_completed"),
	)
	return resp
}

// Random picks a catalog token known to resolve.
func (s *Service) Random(ctx context.Context) RandomResponse {
	if s.deps.Catalog == nil {
		return RandomResponse{Failure: failure(services.Wrap(services.ErrConfiguration, "catalog", "random",
			"asset catalog is not configured (set paths.catalog_path)", nil))}
	}
	entry, err := s.deps.Catalog.Random(s.deps.Rand)
	if err != nil {
		return RandomResponse{Failure: failure(services.Wrap(services.ErrDataShape, "catalog", "random", err.Error(), err))}
	}
	return RandomResponse{ContractID: entry.ContractAddress, TokenID: entry.TokenID}
}

// History lists recorded runs, optionally filtered by status.
func (s *Service) History(ctx context.Context, statuses ...ledger.Status) HistoryResponse {
	if s.deps.Ledger == nil {
		return HistoryResponse{Runs: []Run{}, Failure: failure(errLedgerUnavailable("history"))}
	}
	records, err := s.deps.Ledger.List(ctx, statuses...)
	if err != nil {
		return HistoryResponse{Runs: []Run{}, Failure: failure(err)}
	}
	return HistoryResponse{Runs: FromRecords(records)}
}

// LatestForAsset returns the most recent run that resolved to assetID, or no
// runs when the asset has never been seen.
func (s *Service) LatestForAsset(ctx context.Context, assetID string) HistoryResponse {
	if s.deps.Ledger == nil {
		return HistoryResponse{Runs: []Run{}, Failure: failure(errLedgerUnavailable("history"))}
	}
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return HistoryResponse{Runs: []Run{}, Failure: failure(services.Wrap(services.ErrDataShape, "ledger", "history",
			"asset id is required", nil))}
	}
	record, err := s.deps.Ledger.LatestForAsset(ctx, assetID)
	if err != nil {
		return HistoryResponse{Runs: []Run{}, Failure: failure(err)}
	}
	if record == nil {
		return HistoryResponse{Runs: []Run{}}
	}
	return HistoryResponse{Runs: []Run{FromRecord(record)}}
}

// ClearHistory removes recorded runs, or only failed ones when failedOnly is set.
func (s *Service) ClearHistory(ctx context.Context, failedOnly bool) ClearHistoryResponse {
	if s.deps.Ledger == nil {
		return ClearHistoryResponse{Failure: failure(errLedgerUnavailable("clear"))}
	}
	remove := s.deps.Ledger.Clear
	if failedOnly {
		remove = s.deps.Ledger.ClearFailed
	}
	removed, err := remove(ctx)
	if err != nil {
		return ClearHistoryResponse{Failure: failure(err)}
	}
	s.logger.Info("run history cleared",
		logging.Int64("removed", removed),
		logging.Bool("failed_only", failedOnly),
		logging.String(logging.FieldEventType, "history_cleared"),
	)
	return ClearHistoryResponse{Removed: removed}
}

func errLedgerUnavailable(operation string) error {
	return services.Wrap(services.ErrConfiguration, "ledger", operation, "run ledger is not available", nil)
}

func (s *Service) resolve(ctx context.Context, contractID, tokenID string) (string, error) {
	if s.deps.Resolver == nil {
		return "", errNotConfigured(StageResolve)
	}
	ctx = services.WithStage(ctx, StageResolve)
	start := time.Now()
	assetID, err := s.deps.Resolver.Resolve(ctx, strings.TrimSpace(contractID), strings.TrimSpace(tokenID))
	s.observe(StageResolve, err, start)
	return assetID, err
}

func (s *Service) fetch(ctx context.Context, assetID string) (string, error) {
	if s.deps.Fetcher == nil {
		return "", errNotConfigured(StageFetch)
	}
	ctx = services.WithAssetID(services.WithStage(ctx, StageFetch), assetID)
	start := time.Now()
	url, err := s.deps.Fetcher.Fetch(ctx, strings.TrimSpace(assetID))
	s.observe(StageFetch, err, start)
	return url, err
}

func (s *Service) convert(ctx context.Context, assetID, url string) (conversion.Result, error) {
	if s.deps.Converter == nil {
		return conversion.Result{}, errNotConfigured(StageConvert)
	}
	assetID = strings.TrimSpace(assetID)
	url = strings.TrimSpace(url)
	if assetID == "" {
		return conversion.Result{}, services.Wrap(services.ErrDataShape, StageConvert, "validate", "asset id is required", nil)
	}
	// The shared execution outlives any single caller; each caller stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(services.WithAssetID(services.WithStage(ctx, StageConvert), assetID))
	ch := s.inflight.DoChan(assetID+"\x00"+url, func() (any, error) {
		start := time.Now()
		result, err := s.deps.Converter.Convert(shared, assetID, url)
		s.observe(StageConvert, err, start)
		return result, err
	})
	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("conversion shared with in-flight call", logging.String(logging.FieldAssetID, assetID))
		}
		if res.Err != nil {
			return conversion.Result{}, res.Err
		}
		return res.Val.(conversion.Result), nil
	case <-ctx.Done():
		return conversion.Result{}, services.Wrap(services.ErrTransport, StageConvert, "wait",
			"conversion request for asset "+assetID+" was cancelled", ctx.Err())
	}
}

func (s *Service) observe(stage string, err error, start time.Time) {
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveStage(stage, err, time.Since(start))
	}
}

func (s *Service) beginRun(ctx context.Context, logger *slog.Logger, contractID, tokenID, requestID string) *ledger.Record {
	if s.deps.Ledger == nil || strings.TrimSpace(contractID) == "" || strings.TrimSpace(tokenID) == "" {
		return nil
	}
	record, err := s.deps.Ledger.Begin(ctx, contractID, tokenID, requestID)
	if err != nil {
		logging.WarnWithContext(logger, "failed to record run start", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database under log_dir"),
			logging.String(logging.FieldImpact, "run will be missing from history"),
		)
		return nil
	}
	return record
}

func (s *Service) advance(ctx context.Context, logger *slog.Logger, record *ledger.Record, status ledger.Status, mutate func(*ledger.Record)) {
	if record == nil {
		return
	}
	record.Status = status
	if mutate != nil {
		mutate(record)
	}
	s.saveRun(ctx, logger, record)
}

func (s *Service) saveRun(ctx context.Context, logger *slog.Logger, record *ledger.Record) {
	if err := s.deps.Ledger.Update(context.WithoutCancel(ctx), record); err != nil {
		logging.WarnWithContext(logger, "failed to update run", "ledger_write_failed",
			logging.Int64("run_id", record.ID),
			logging.String("status", string(record.Status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database under log_dir"),
			logging.String(logging.FieldImpact, "history shows a stale status"),
		)
	}
}

func withRequestID(ctx context.Context) context.Context {
	if _, ok := services.RequestIDFromContext(ctx); ok {
		return ctx
	}
	return services.WithRequestID(ctx, uuid.NewString())
}

func errNotConfigured(stage string) error {
	return services.Wrap(services.ErrConfiguration, stage, "init", stage+" stage is not configured", nil)
}
