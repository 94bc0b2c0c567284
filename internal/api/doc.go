// Package api is the caller-facing facade over the conversion pipeline.
//
// Service exposes token resolution, description fetching, conversion, the
// combined run, random catalog picks and run history. Every operation returns
// a response DTO carrying either its value fields or a human-readable error
// with a stable kind (transport, data_shape, conversion, configuration),
// never both. The daemon serializes these DTOs directly; the CLI renders them.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
package api
