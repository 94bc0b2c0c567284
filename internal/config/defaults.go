package config

const (
	defaultConfigPath          = "~/.config/meshport/config.toml"
	defaultLogDir              = "~/.local/share/meshport/logs"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultMetadataBaseURL     = "https://polygon-mainnet.g.alchemy.com/v2"
	defaultMetadataTimeout     = 15
	defaultContentBaseURL      = "https://public-assets.sandbox.game"
	defaultContentTimeout      = 60
	defaultAuxiliaryBaseURL    = "http://localhost:3000"
	defaultStoragePublicHost   = "storage.googleapis.com"
	defaultStorageCacheControl = "public, max-age=31536000"
	defaultConverterBinary     = "mml-avatar-converter"
	defaultConverterTimeout    = 300
	defaultStaleWorkspaceHours = 24
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Metadata: Metadata{
			BaseURL:        defaultMetadataBaseURL,
			TimeoutSeconds: defaultMetadataTimeout,
		},
		Content: Content{
			BaseURL:        defaultContentBaseURL,
			TimeoutSeconds: defaultContentTimeout,
		},
		Auxiliary: Auxiliary{
			BaseURL: defaultAuxiliaryBaseURL,
		},
		Storage: Storage{
			PublicHost:   defaultStoragePublicHost,
			CacheControl: defaultStorageCacheControl,
		},
		Converter: Converter{
			Binary:         defaultConverterBinary,
			Merge:          true,
			TimeoutSeconds: defaultConverterTimeout,
		},
		Workflow: Workflow{
			StaleWorkspaceHours: defaultStaleWorkspaceHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
