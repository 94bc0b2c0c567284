// Package config loads, normalizes, and validates meshport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ALCHEMY_API_KEY, GOOGLE_CLOUD_CREDENTIALS, and GCS_BUCKET_NAME. The Config
// type centralizes every knob the daemon and CLI need so the metadata
// provider, content host, object store, and converter are discovered in one
// pass.
//
// Validation failures are tagged with services.ErrConfiguration. They are
// startup errors: a process that cannot load its configuration must not serve
// requests.
package config
