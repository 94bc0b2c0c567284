package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meshport/internal/api"
)

func TestRunThenHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.upstream.AddToken("0xabc", "123", "7f2a")
	env.upstream.AddScene("7f2a", []byte(`{"scene":true}`))

	out, stderr, err := env.run(t, "run", "0xabc", "123")
	if err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr)
	}
	requireContains(t, out, "Asset: 7f2a")
	requireContains(t, out, "/test-bucket/7f2a.mml")

	mml, ok := env.objects.Get("7f2a.mml")
	if !ok || !strings.HasPrefix(string(mml.Data), `<m-character src="`) {
		t.Fatalf("descriptor not published: %+v", mml)
	}

	out, _, err = env.run(t, "history", "--status", "completed")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var history api.HistoryResponse
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	if len(history.Runs) != 1 || history.Runs[0].AssetID != "7f2a" || history.Runs[0].Status != "completed" {
		t.Fatalf("unexpected history: %+v", history.Runs)
	}
}

func TestResolveFailureIsCommandError(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := env.run(t, "resolve", "0xabc", "999")
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "data_shape error: no external_url found in nft metadata")
}

func TestFetchJSONFailure(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "--json", "fetch", "missing")
	if !errors.Is(err, errReported) {
		t.Fatalf("expected errReported, got %v", err)
	}
	var resp api.FetchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if resp.ErrorKind != "transport" || resp.URL != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if env.objects.Writes() != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestRandomReadsCatalog(t *testing.T) {
	env := setupCLITestEnv(t)
	catalog := `[{"contractAddress":"0x1","tokenId":"1","assetId":null},{"contractAddress":"0x2","tokenId":"7","assetId":"a7"}]`
	if err := os.WriteFile(env.cfg.Paths.CatalogPath, []byte(catalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	out, _, err := env.run(t, "random")
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if strings.TrimSpace(out) != "0x2 7" {
		t.Fatalf("random = %q", out)
	}
}

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)
	root := env.cfg.StagingRoot()
	for _, name := range []string{"meshport-old", "unrelated"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(root, "meshport-old"), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	out, _, err := env.run(t, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "meshport-old")
	if strings.Contains(out, "unrelated") {
		t.Fatalf("list should ignore foreign directories:\n%s", out)
	}

	out, _, err = env.run(t, "staging", "clean")
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 workspaces")
	if _, err := os.Stat(filepath.Join(root, "unrelated")); err != nil {
		t.Fatalf("foreign directory removed: %v", err)
	}
}

func TestCheckReportsConverter(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, env.cfg.Converter.Binary)
	requireContains(t, out, "yes")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestRenderHistoryTitlesStatus(t *testing.T) {
	out := renderHistory([]api.Run{{
		ID:           3,
		ContractID:   "0xabc",
		TokenID:      "1",
		AssetID:      "a1",
		Status:       "failed",
		ErrorKind:    "conversion",
		ErrorMessage: "conversion failed",
	}})
	requireContains(t, out, "Failed")
	requireContains(t, out, "conversion: conversion failed")
	requireContains(t, out, "0xabc/1")
}

func TestDaemonStatusWhenStopped(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.APIBind = "127.0.0.1:1"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := env.run(t, "daemon", "status")
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestHistoryAssetLookupAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	env.upstream.AddToken("0xabc", "123", "7f2a")
	env.upstream.AddScene("7f2a", []byte(`{"scene":true}`))

	if _, stderr, err := env.run(t, "run", "0xabc", "123"); err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr)
	}
	if _, _, err := env.run(t, "run", "0xabc", "999"); err == nil {
		t.Fatal("expected unknown token to fail")
	}

	out, _, err := env.run(t, "history", "--asset", "7f2a")
	if err != nil {
		t.Fatalf("history --asset: %v", err)
	}
	var latest api.HistoryResponse
	if err := json.Unmarshal([]byte(out), &latest); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	if len(latest.Runs) != 1 || latest.Runs[0].Status != "completed" {
		t.Fatalf("unexpected latest run: %+v", latest.Runs)
	}

	out, _, err = env.run(t, "history", "clear", "--failed")
	if err != nil {
		t.Fatalf("history clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed runs")

	out, _, err = env.run(t, "history", "clear")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 runs")
}
