package testsupport

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"meshport/internal/config"
)

// TestCredentials is a base64 service-account document accepted by config validation.
var TestCredentials = base64.StdEncoding.EncodeToString([]byte(`{"type":"service_account","project_id":"test-project"}`))

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "assets.json")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Metadata.APIKey = "test"
	cfgVal.Metadata.RequestsPerSecond = 0
	cfgVal.Storage.Bucket = "test-bucket"
	cfgVal.Storage.Credentials = TestCredentials

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the daemon bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithUpstream points metadata, content and auxiliary hosts at baseURL
// (typically an AssetServer).
func WithUpstream(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metadata.BaseURL = baseURL + "/v2"
		b.cfg.Content.BaseURL = baseURL
		b.cfg.Auxiliary.BaseURL = baseURL
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the converter binary is stubbed.
// Stubs exit 0 without producing output.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Converter.Binary}
		}
		script := "#!/bin/sh\nexit 0\n"
		for _, name := range names {
			writeStub(b, name, script)
		}
	}
}

// WithStubConverter installs a converter stub that behaves like the real
// one: it requires data/skeleton.glb relative to its working directory and
// writes a small binary to the --output path.
func WithStubConverter() ConfigOption {
	return func(b *configBuilder) {
		script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift ;;
  esac
  shift
done
[ -f data/skeleton.glb ] || { echo "skeleton missing" >&2; exit 3; }
[ -n "$out" ] || exit 4
printf 'glTF-binary' > "$out"
`
		writeStub(b, b.cfg.Converter.Binary, script)
	}
}

func writeStub(b *configBuilder, name, script string) {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		b.t.Fatalf("set PATH: %v", err)
	}
	b.t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
