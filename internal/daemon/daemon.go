package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"meshport/internal/api"
	"meshport/internal/config"
	"meshport/internal/deps"
	"meshport/internal/ledger"
	"meshport/internal/logging"
	"meshport/internal/staging"
)

// RunStore is the subset of the ledger the daemon maintains.
type RunStore interface {
	Path() string
	Stats(ctx context.Context) (map[ledger.Status]int, error)
	ResetInFlight(ctx context.Context) (int64, error)
}

// Daemon serves the pipeline and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  *api.Service
	store    RunStore
	gatherer prometheus.Gatherer

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LedgerPath   string
	LockFilePath string
	StagingDir   string
	RunStats     map[ledger.Status]int
	Dependencies []deps.Status
}

// New constructs a daemon. gatherer may be nil, in which case /metrics serves
// the default registry.
func New(cfg *config.Config, service *api.Service, store RunStore, logger *slog.Logger, gatherer prometheus.Gatherer) (*Daemon, error) {
	if cfg == nil || service == nil || store == nil {
		return nil, errors.New("daemon requires config, service, and run store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		service:  service,
		store:    store,
		gatherer: gatherer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, performs startup housekeeping and starts
// the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another meshport daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.housekeeping(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("meshport daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.APIAddr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) housekeeping(ctx context.Context) {
	if reset, err := d.store.ResetInFlight(ctx); err != nil {
		logging.WarnWithContext(d.logger, "failed to reset interrupted runs", "ledger_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database under log_dir"),
			logging.String(logging.FieldImpact, "interrupted runs stay in-flight in history"),
		)
	} else if reset > 0 {
		d.logger.Info("marked interrupted runs failed", logging.Int64("count", reset))
	}

	maxAge := time.Duration(d.cfg.Workflow.StaleWorkspaceHours) * time.Hour
	if maxAge <= 0 {
		return
	}
	result := staging.CleanStale(ctx, d.cfg.StagingRoot(), maxAge, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("removed stale workspaces",
			logging.Int("count", len(result.Removed)),
			logging.String(logging.FieldEventType, "staging_swept"),
		)
	}
}

// Stop stops the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("meshport daemon stopped")
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddr reports the bound API address, or the configured bind before start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Debug("run stats unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
		StagingDir:   d.cfg.StagingRoot(),
		RunStats:     stats,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}
