package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSWriter writes objects into a Google Cloud Storage bucket.
type GCSWriter struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCSWriter authenticates with the decoded service-account JSON and binds
// to bucket. The client is created once and reused for every upload.
func NewGCSWriter(ctx context.Context, credentialsJSON []byte, bucket string) (*GCSWriter, error) {
	if len(credentialsJSON) == 0 {
		return nil, errors.New("gcs credentials are empty")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := gcs.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSWriter{client: client, bucket: client.Bucket(bucket)}, nil
}

// WriteObject uploads data in a single request, replacing any existing object.
func (w *GCSWriter) WriteObject(ctx context.Context, key string, data []byte, attrs ObjectAttrs) error {
	writer := w.bucket.Object(key).NewWriter(ctx)
	writer.ContentType = attrs.ContentType
	writer.CacheControl = attrs.CacheControl
	writer.ChunkSize = 0
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// Close releases the underlying client.
func (w *GCSWriter) Close() error {
	if w == nil || w.client == nil {
		return nil
	}
	return w.client.Close()
}
