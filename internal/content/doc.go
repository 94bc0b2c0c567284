// Package content downloads original scene descriptions from the content
// host and republishes them to object storage.
package content
