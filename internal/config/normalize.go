package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMetadata()
	c.normalizeContent()
	c.normalizeAuxiliary()
	c.normalizeStorage()
	c.normalizeConverter()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(strings.TrimSpace(c.Paths.StagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CatalogPath, err = expandPath(strings.TrimSpace(c.Paths.CatalogPath)); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MESHPORT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeMetadata() {
	c.Metadata.APIKey = strings.TrimSpace(c.Metadata.APIKey)
	if c.Metadata.APIKey == "" {
		if value, ok := os.LookupEnv("ALCHEMY_API_KEY"); ok {
			c.Metadata.APIKey = strings.TrimSpace(value)
		}
	}
	c.Metadata.BaseURL = strings.TrimRight(strings.TrimSpace(c.Metadata.BaseURL), "/")
	if c.Metadata.BaseURL == "" {
		c.Metadata.BaseURL = defaultMetadataBaseURL
	}
	if c.Metadata.RequestsPerSecond < 0 {
		c.Metadata.RequestsPerSecond = 0
	}
	if c.Metadata.TimeoutSeconds <= 0 {
		c.Metadata.TimeoutSeconds = defaultMetadataTimeout
	}
}

func (c *Config) normalizeContent() {
	c.Content.BaseURL = strings.TrimSpace(c.Content.BaseURL)
	if value, ok := os.LookupEnv("CONTENT_BASE_URL"); ok && c.Content.BaseURL == defaultContentBaseURL {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			c.Content.BaseURL = trimmed
		}
	}
	c.Content.BaseURL = strings.TrimRight(c.Content.BaseURL, "/")
	if c.Content.BaseURL == "" {
		c.Content.BaseURL = defaultContentBaseURL
	}
	if c.Content.TimeoutSeconds <= 0 {
		c.Content.TimeoutSeconds = defaultContentTimeout
	}
}

func (c *Config) normalizeAuxiliary() {
	c.Auxiliary.BaseURL = strings.TrimSpace(c.Auxiliary.BaseURL)
	if value, ok := os.LookupEnv("HOST_DOMAIN"); ok && c.Auxiliary.BaseURL == defaultAuxiliaryBaseURL {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			c.Auxiliary.BaseURL = trimmed
		}
	}
	c.Auxiliary.BaseURL = strings.TrimRight(c.Auxiliary.BaseURL, "/")
	if c.Auxiliary.BaseURL == "" {
		c.Auxiliary.BaseURL = defaultAuxiliaryBaseURL
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		if value, ok := os.LookupEnv("GCS_BUCKET_NAME"); ok {
			c.Storage.Bucket = strings.TrimSpace(value)
		}
	}
	c.Storage.Credentials = strings.TrimSpace(c.Storage.Credentials)
	if c.Storage.Credentials == "" {
		if value, ok := os.LookupEnv("GOOGLE_CLOUD_CREDENTIALS"); ok {
			c.Storage.Credentials = strings.TrimSpace(value)
		}
	}
	c.Storage.PublicHost = strings.Trim(strings.TrimSpace(c.Storage.PublicHost), "/")
	if c.Storage.PublicHost == "" {
		c.Storage.PublicHost = defaultStoragePublicHost
	}
	c.Storage.CacheControl = strings.TrimSpace(c.Storage.CacheControl)
	if c.Storage.CacheControl == "" {
		c.Storage.CacheControl = defaultStorageCacheControl
	}
}

func (c *Config) normalizeConverter() {
	c.Converter.Binary = strings.TrimSpace(c.Converter.Binary)
	if c.Converter.Binary == "" {
		c.Converter.Binary = defaultConverterBinary
	}
	args := make([]string, 0, len(c.Converter.Args))
	for _, arg := range c.Converter.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Converter.Args = args
	if c.Converter.TimeoutSeconds <= 0 {
		c.Converter.TimeoutSeconds = defaultConverterTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.StaleWorkspaceHours <= 0 {
		c.Workflow.StaleWorkspaceHours = defaultStaleWorkspaceHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
