package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meshport/internal/services"
	"meshport/internal/storage"
)

type countingObserver struct {
	calls map[string]int
}

func (c *countingObserver) ObservePublish(contentType string, n int) {
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[contentType] += n
}

func TestPublishStoresBytesAndReturnsURL(t *testing.T) {
	mem := storage.NewMemoryWriter()
	obs := &countingObserver{}
	pub, err := storage.NewPublisher(mem, "assets-bucket", storage.WithObserver(obs))
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	payload := []byte(`{"asset":"x"}`)
	url, err := pub.Publish(context.Background(), "abc.gltf", payload, "model/gltf+json")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if url != "https://storage.googleapis.com/assets-bucket/abc.gltf" {
		t.Fatalf("unexpected url %q", url)
	}
	obj, ok := mem.Get("abc.gltf")
	if !ok {
		t.Fatal("object not stored")
	}
	if !bytes.Equal(obj.Data, payload) {
		t.Fatalf("stored bytes differ: %q", obj.Data)
	}
	if obj.Attrs.ContentType != "model/gltf+json" || obj.Attrs.CacheControl != storage.DefaultCacheControl {
		t.Fatalf("unexpected attrs %+v", obj.Attrs)
	}
	if obs.calls["model/gltf+json"] != len(payload) {
		t.Fatalf("observer not called: %+v", obs.calls)
	}
}

func TestPublishDefaultsContentType(t *testing.T) {
	mem := storage.NewMemoryWriter()
	pub, err := storage.NewPublisher(mem, "b")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if _, err := pub.Publish(context.Background(), "blob", []byte{1, 2}, ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	obj, _ := mem.Get("blob")
	if obj.Attrs.ContentType != storage.DefaultContentType {
		t.Fatalf("content type = %q", obj.Attrs.ContentType)
	}
}

func TestRepublishOverwritesWithSameURL(t *testing.T) {
	mem := storage.NewMemoryWriter()
	pub, err := storage.NewPublisher(mem, "b", storage.WithPublicHost("cdn.example.com/"))
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	first, err := pub.Publish(context.Background(), "a.mml", []byte("one"), "text/html")
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}
	second, err := pub.Publish(context.Background(), "a.mml", []byte("two"), "text/html")
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if first != second || first != "https://cdn.example.com/b/a.mml" {
		t.Fatalf("urls differ: %q vs %q", first, second)
	}
	obj, _ := mem.Get("a.mml")
	if string(obj.Data) != "two" {
		t.Fatalf("expected overwrite, got %q", obj.Data)
	}
	if mem.Writes() != 2 {
		t.Fatalf("writes = %d", mem.Writes())
	}
}

func TestPublishFailureIsTransportError(t *testing.T) {
	mem := storage.NewMemoryWriter()
	mem.Err = errors.New("permission denied")
	pub, err := storage.NewPublisher(mem, "b")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	_, err = pub.Publish(context.Background(), "x.glb", []byte("data"), "model/gltf-binary")
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "permission denied") || !strings.Contains(err.Error(), "x.glb") {
		t.Fatalf("error should carry key and cause: %v", err)
	}
}

func TestNewPublisherRequiresBucket(t *testing.T) {
	_, err := storage.NewPublisher(storage.NewMemoryWriter(), "  ")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPublishRejectsEmptyKey(t *testing.T) {
	pub, err := storage.NewPublisher(storage.NewMemoryWriter(), "b")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if _, err := pub.Publish(context.Background(), " ", nil, ""); !errors.Is(err, services.ErrDataShape) {
		t.Fatalf("expected data shape error, got %v", err)
	}
}

func TestMemoryWriterServesPublishedObjects(t *testing.T) {
	mem := storage.NewMemoryWriter()
	srv := httptest.NewServer(mem)
	defer srv.Close()

	pub, err := storage.NewPublisher(mem, "b", storage.WithPublicHost(srv.URL))
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	url, err := pub.Publish(context.Background(), "x.gltf", []byte("scene"), "model/gltf+json")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if url != srv.URL+"/b/x.gltf" {
		t.Fatalf("url = %q", url)
	}
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "scene" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
}
