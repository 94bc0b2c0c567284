package config

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"meshport/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir  string `toml:"staging_dir"`
	LogDir      string `toml:"log_dir"`
	CatalogPath string `toml:"catalog_path"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Metadata configures the NFT metadata provider used to resolve asset IDs.
type Metadata struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Content configures the host serving original scene descriptions.
type Content struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Auxiliary configures the host serving converter-side inputs (skeleton.glb).
type Auxiliary struct {
	BaseURL string `toml:"base_url"`
}

// Storage configures the object store that receives published artifacts.
type Storage struct {
	Bucket       string `toml:"bucket"`
	Credentials  string `toml:"credentials"`
	PublicHost   string `toml:"public_host"`
	CacheControl string `toml:"cache_control"`
}

// Converter configures the external glTF to GLB converter.
type Converter struct {
	Binary         string   `toml:"binary"`
	Args           []string `toml:"args"`
	Merge          bool     `toml:"merge"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Workflow contains pipeline housekeeping settings.
type Workflow struct {
	StaleWorkspaceHours int `toml:"stale_workspace_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for meshport.
//
// Configuration sections by subsystem:
//   - Paths: staging/log directories, asset catalog, and API bind address
//   - Metadata: token to asset resolution via the metadata provider
//   - Content: original scene description host
//   - Auxiliary: converter-side resource host
//   - Storage: object store bucket and credentials
//   - Converter: external converter invocation
//   - Workflow: staging housekeeping
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Metadata  Metadata  `toml:"metadata"`
	Content   Content   `toml:"content"`
	Auxiliary Auxiliary `toml:"auxiliary"`
	Storage   Storage   `toml:"storage"`
	Converter Converter `toml:"converter"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg, resolvedPath, exists, err := load(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

// LoadUnchecked parses and normalizes configuration without validating
// credentials. Commands that only touch local state (history, staging) use it
// so they keep working on hosts without object-store access.
func LoadUnchecked(path string) (*Config, string, bool, error) {
	return load(path)
}

func load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("meshport.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StagingRoot returns the directory that receives per-invocation workspaces.
// An unset staging_dir falls back to the system temp root.
func (c *Config) StagingRoot() string {
	if dir := strings.TrimSpace(c.Paths.StagingDir); dir != "" {
		return dir
	}
	return os.TempDir()
}

// LedgerPath returns the SQLite conversion ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "meshport.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "meshportd.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "meshportd.pid")
}

// StorageCredentials decodes the base64 credential document and returns the
// raw JSON together with its project_id.
func (c *Config) StorageCredentials() ([]byte, string, error) {
	encoded := strings.TrimSpace(c.Storage.Credentials)
	if encoded == "" {
		return nil, "", services.Wrap(services.ErrConfiguration, "config", "storage credentials",
			"storage.credentials is required (set GOOGLE_CLOUD_CREDENTIALS)", nil)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", services.Wrap(services.ErrConfiguration, "config", "storage credentials",
			"failed to decode storage credentials", err)
	}
	var doc struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(decoded, &doc); err != nil {
		return nil, "", services.Wrap(services.ErrConfiguration, "config", "storage credentials",
			"failed to parse storage credentials", err)
	}
	if strings.TrimSpace(doc.ProjectID) == "" {
		return nil, "", services.Wrap(services.ErrConfiguration, "config", "storage credentials",
			"storage credentials missing project_id", nil)
	}
	return decoded, doc.ProjectID, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
