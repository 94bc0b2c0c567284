// Package daemonrun hosts the meshportd process lifecycle: logger, pid file,
// pipeline assembly and daemon start/stop around a signal-aware context.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"meshport/internal/config"
	"meshport/internal/daemon"
	"meshport/internal/deps"
	"meshport/internal/logging"
	"meshport/internal/pipeline"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Ready, when set, receives the bound API address once the daemon is serving.
	Ready func(addr string)
	// BuildOptions are passed to pipeline.Build.
	BuildOptions []pipeline.Option
}

// Run starts the meshport daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	buildOpts := append([]pipeline.Option{pipeline.WithRegisterer(registry)}, opts.BuildOptions...)
	pipe, err := pipeline.Build(signalCtx, cfg, logger, buildOpts...)
	if err != nil {
		logger.Error("build pipeline", logging.Error(err))
		return err
	}
	defer pipe.Close()

	d, err := daemon.New(cfg, pipe.Service, pipe.Ledger, logger, registry)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if opts.Ready != nil {
		opts.Ready(d.APIAddr())
	}

	<-signalCtx.Done()
	logger.Info("meshport daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("metadata_key_present", strings.TrimSpace(cfg.Metadata.APIKey) != ""),
		logging.String("storage_bucket", cfg.Storage.Bucket),
		logging.String("content_base_url", cfg.Content.BaseURL),
		logging.String("auxiliary_base_url", cfg.Auxiliary.BaseURL),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(strings.ToLower(status.Name)+"_available", status.Available),
			logging.String(strings.ToLower(status.Name)+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
