package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"

	"meshport/internal/config"
	"meshport/internal/pipeline"
	"meshport/internal/storage"
	"meshport/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	upstream   *testsupport.AssetServer
	objects    *storage.MemoryWriter
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	upstream := testsupport.NewAssetServer(t)
	objects := storage.NewMemoryWriter()
	objectServer := httptest.NewServer(objects)
	t.Cleanup(objectServer.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithUpstream(upstream.URL),
		testsupport.WithStubConverter(),
	)
	cfg.Storage.PublicHost = objectServer.URL

	configPath := filepath.Join(testsupport.BaseDir(cfg), "meshport.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		upstream:   upstream,
		objects:    objects,
		configPath: configPath,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.configPath,
		pipeline.WithObjectWriter(e.objects),
		pipeline.WithRegisterer(prometheus.NewRegistry()),
	)
}

func runCLI(t *testing.T, args []string, configPath string, opts ...pipeline.Option) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(opts...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
