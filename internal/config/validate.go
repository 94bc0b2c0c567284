package config

import (
	"fmt"
	"net/url"
	"strings"

	"meshport/internal/services"
)

// Validate ensures the configuration is usable. Every failure is a
// services.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateHosts(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if c.Metadata.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return configError(fmt.Sprintf("metadata.api_key is required. Set ALCHEMY_API_KEY env var or edit %s (create with 'meshport config init')", defaultPath))
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return configError("storage.bucket is required (set GCS_BUCKET_NAME)")
	}
	if _, _, err := c.StorageCredentials(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateHosts() error {
	for key, value := range map[string]string{
		"metadata.base_url":  c.Metadata.BaseURL,
		"content.base_url":   c.Content.BaseURL,
		"auxiliary.base_url": c.Auxiliary.BaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return configError(fmt.Sprintf("%s must be an absolute URL, got %q", key, value))
		}
	}
	return nil
}

func configError(message string) error {
	return services.Wrap(services.ErrConfiguration, "config", "validate", message, nil)
}
