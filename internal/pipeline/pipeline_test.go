package pipeline_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"meshport/internal/config"
	"meshport/internal/ledger"
	"meshport/internal/logging"
	"meshport/internal/pipeline"
	"meshport/internal/staging"
	"meshport/internal/storage"
	"meshport/internal/testsupport"
)

type env struct {
	cfg      *config.Config
	upstream *testsupport.AssetServer
	store    *storage.MemoryWriter
	registry *prometheus.Registry
	pipe     *pipeline.Pipeline
}

func newEnv(t *testing.T, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	upstream := testsupport.NewAssetServer(t)
	mem := storage.NewMemoryWriter()
	objects := httptest.NewServer(mem)
	t.Cleanup(objects.Close)

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{
		testsupport.WithUpstream(upstream.URL),
		testsupport.WithStubConverter(),
	}, opts...)...)
	cfg.Storage.PublicHost = objects.URL

	reg := prometheus.NewRegistry()
	pipe, err := pipeline.Build(context.Background(), cfg, logging.NewNop(),
		pipeline.WithObjectWriter(mem),
		pipeline.WithRegisterer(reg),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = pipe.Close() })
	return &env{cfg: cfg, upstream: upstream, store: mem, registry: reg, pipe: pipe}
}

func TestRunPublishesAllArtifacts(t *testing.T) {
	e := newEnv(t)
	e.upstream.AddToken("0xabc", "123", "7f2a")
	e.upstream.AddScene("7f2a", []byte(`{"scene":true}`))

	resp := e.pipe.Service.Run(context.Background(), "0xabc", "123")
	if resp.Failed() {
		t.Fatalf("run failed: %+v", resp.Failure)
	}
	if resp.AssetID != "7f2a" {
		t.Fatalf("asset id = %q", resp.AssetID)
	}
	if !strings.HasSuffix(resp.GLTFURL, "/test-bucket/7f2a.gltf") ||
		!strings.HasSuffix(resp.GLBURL, "/test-bucket/7f2a.glb") ||
		!strings.HasSuffix(resp.MMLURL, "/test-bucket/7f2a.mml") {
		t.Fatalf("unexpected urls: %+v", resp)
	}

	gltf, _ := e.store.Get("7f2a.gltf")
	if string(gltf.Data) != `{"scene":true}` {
		t.Fatalf("gltf = %q", gltf.Data)
	}
	glb, _ := e.store.Get("7f2a.glb")
	if string(glb.Data) != "glTF-binary" {
		t.Fatalf("glb = %q", glb.Data)
	}
	mml, _ := e.store.Get("7f2a.mml")
	if want := `<m-character src="` + resp.GLBURL + `"></m-character>`; string(mml.Data) != want {
		t.Fatalf("mml = %q, want %q", mml.Data, want)
	}

	record, err := e.pipe.Ledger.LatestForAsset(context.Background(), "7f2a")
	if err != nil || record == nil || record.Status != ledger.StatusCompleted {
		t.Fatalf("ledger record = %+v, err %v", record, err)
	}

	dirs, err := staging.ListWorkspaces(e.cfg.StagingRoot())
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("workspaces left behind: %v", dirs)
	}

	if n, err := testutil.GatherAndCount(e.registry, "meshport_stage_total"); err != nil || n != 3 {
		t.Fatalf("stage series = %d, err %v", n, err)
	}
	if n, err := testutil.GatherAndCount(e.registry, "meshport_published_bytes_total"); err != nil || n != 3 {
		t.Fatalf("published series = %d, err %v", n, err)
	}
}

func TestFetchMissingSceneDoesNotPublish(t *testing.T) {
	e := newEnv(t)

	resp := e.pipe.Service.FetchDescription(context.Background(), "nope")
	if !resp.Failed() || resp.ErrorKind != "transport" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.Contains(resp.Error, "nope") || !strings.Contains(resp.Error, "404") {
		t.Fatalf("error should name asset and status: %q", resp.Error)
	}
	if e.store.Writes() != 0 {
		t.Fatalf("unexpected writes: %v", e.store.Keys())
	}
}

func TestConverterFailureReportsConversionFailed(t *testing.T) {
	e := newEnv(t, testsupport.WithStubbedBinaries())
	e.upstream.AddScene("a1", []byte(`{}`))

	fetched := e.pipe.Service.FetchDescription(context.Background(), "a1")
	if fetched.Failed() {
		t.Fatalf("fetch failed: %+v", fetched.Failure)
	}
	resp := e.pipe.Service.Convert(context.Background(), "a1", fetched.URL)
	if resp.Error != "conversion failed" || resp.ErrorKind != "conversion" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if _, ok := e.store.Get("a1.glb"); ok {
		t.Fatal("glb must not be published")
	}
	if _, ok := e.store.Get("a1.mml"); ok {
		t.Fatal("mml must not be published")
	}
}

func TestBuildRejectsMissingBucket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Bucket = ""
	_, err := pipeline.Build(context.Background(), cfg, nil,
		pipeline.WithObjectWriter(storage.NewMemoryWriter()),
		pipeline.WithoutLedger(),
	)
	if err == nil {
		t.Fatal("expected configuration error")
	}
}
