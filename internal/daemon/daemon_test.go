package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meshport/internal/api"
	"meshport/internal/daemon"
	"meshport/internal/ledger"
	"meshport/internal/logging"
	"meshport/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewService(api.Dependencies{Ledger: store, Logger: logging.NewNop()})

	d, err := daemon.New(cfg, svc, store, logging.NewNop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LedgerPath != cfg.LedgerPath() || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected paths: %+v", status)
	}
	if len(status.Dependencies) != 1 || !status.Dependencies[0].Available {
		t.Fatalf("expected stubbed converter to be available: %+v", status.Dependencies)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewService(api.Dependencies{Logger: logging.NewNop()})

	first, err := daemon.New(cfg, svc, store, nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	second, err := daemon.New(cfg, svc, store, nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestStartResetsInterruptedRunsAndSweepsStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StaleWorkspaceHours = 1
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.BeginRun(t, store, "0xabc", "1")

	stale := filepath.Join(cfg.StagingRoot(), "meshport-stale")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	svc := api.NewService(api.Dependencies{Ledger: store, Logger: logging.NewNop()})
	d, err := daemon.New(cfg, svc, store, logging.NewNop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	record, err := store.GetByID(context.Background(), run.ID)
	if err != nil || record == nil {
		t.Fatalf("GetByID: %v %v", record, err)
	}
	if record.Status != ledger.StatusFailed {
		t.Fatalf("status = %s, want failed", record.Status)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale workspace still present: %v", err)
	}
}
