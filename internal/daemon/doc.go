// Package daemon runs the long-lived meshport process.
//
// It enforces a single instance with a flock on {log_dir}/meshportd.lock,
// marks runs interrupted by a previous crash as failed, sweeps stale
// conversion workspaces, and serves the JSON API plus Prometheus metrics on
// paths.api_bind. Pipeline logic stays in the api and conversion packages.
package daemon
