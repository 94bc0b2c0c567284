// Package pipeline assembles the api.Service from configuration: storage
// publisher, metadata resolver, content fetcher, auxiliary stager, converter,
// ledger, catalog and metrics. Both the CLI and the daemon build through it.
package pipeline
