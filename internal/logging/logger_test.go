package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meshport/internal/config"
	"meshport/internal/logging"
	"meshport/internal/services"
)

func TestConsoleFormatIncludesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.NewComponentLogger(logger, "metadata").Info("resolved asset", logging.String(logging.FieldAssetID, "abc 123"))

	line := buf.String()
	if !strings.Contains(line, "INFO metadata: resolved asset") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, `asset_id="abc 123"`) {
		t.Fatalf("expected quoted asset id, got %q", line)
	}
}

func TestJSONFormatRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hello", logging.Int("count", 2))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if payload["level"] != "debug" || payload["msg"] != "hello" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key in %v", payload)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("expected warn output, got %q", buf.String())
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "cleanup failed", "staging_cleanup_failed",
		logging.String(logging.FieldErrorHint, "remove the workspace manually"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[logging.FieldEventType] != "staging_cleanup_failed" {
		t.Fatalf("event_type = %v", payload[logging.FieldEventType])
	}
	if payload[logging.FieldErrorHint] != "remove the workspace manually" {
		t.Fatalf("error_hint overwritten: %v", payload[logging.FieldErrorHint])
	}
	if payload[logging.FieldImpact] == nil {
		t.Fatal("expected default impact")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithAssetID(services.WithStage(context.Background(), "content"), "asset-1")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, logger).Info("fetching")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[logging.FieldStage] != "content" || payload[logging.FieldAssetID] != "asset-1" || payload[logging.FieldCorrelationID] != "req-9" {
		t.Fatalf("missing context fields: %v", payload)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("written to file")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "meshport.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file missing entry: %q", string(data))
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
}

func TestContextFieldsAddedToRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithAssetID(services.WithStage(context.Background(), "convert"), "a7")
	ctx = services.WithRequestID(ctx, "req-1")

	logger.With(logging.String(logging.FieldAssetID, "bound")).InfoContext(ctx, "staged")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if payload[logging.FieldStage] != "convert" || payload[logging.FieldCorrelationID] != "req-1" {
		t.Fatalf("missing context fields: %v", payload)
	}
	if payload[logging.FieldAssetID] != "bound" {
		t.Fatalf("bound asset id replaced: %v", payload[logging.FieldAssetID])
	}
}

func TestConsoleLeadsWithPipelineFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRequestID(services.WithStage(context.Background(), "fetch"), "r9")
	logging.NewComponentLogger(logger, "content").InfoContext(ctx, "downloading",
		logging.String("url", "https://x.test/a"),
		logging.String(logging.FieldAssetID, "a1"),
	)

	line := buf.String()
	want := "INFO content: downloading stage=fetch asset_id=a1 correlation_id=r9 url=https://x.test/a\n"
	if !strings.HasSuffix(line, want) {
		t.Fatalf("console line = %q, want suffix %q", line, want)
	}
}

func TestCleanupWarningEvent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.CleanupWarning(logger, "failed to remove staged file", "/tmp/ws/a1.glb", os.ErrPermission)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["level"] != "warn" || payload[logging.FieldEventType] != logging.EventCleanupFailed {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["path"] != "/tmp/ws/a1.glb" || payload[logging.FieldImpact] != "disk space not reclaimed" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}
