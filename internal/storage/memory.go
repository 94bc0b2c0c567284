package storage

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Object is a stored entry held by MemoryWriter.
type Object struct {
	Data  []byte
	Attrs ObjectAttrs
}

// MemoryWriter is an in-process ObjectWriter. Writes can be forced to fail by
// setting Err.
type MemoryWriter struct {
	mu      sync.Mutex
	objects map[string]Object
	writes  int
	Err     error
}

// NewMemoryWriter returns an empty in-memory bucket.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{objects: make(map[string]Object)}
}

func (m *MemoryWriter) WriteObject(ctx context.Context, key string, data []byte, attrs ObjectAttrs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.objects[key] = Object{Data: copied, Attrs: attrs}
	m.writes++
	return nil
}

// Get returns the stored object for key.
func (m *MemoryWriter) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists stored keys in sorted order.
func (m *MemoryWriter) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes reports how many successful writes happened, overwrites included.
func (m *MemoryWriter) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ServeHTTP serves stored objects at /{bucket}/{key}, which lets tests point
// a Publisher's public host at an httptest server backed by this writer.
func (m *MemoryWriter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	_, key, ok := strings.Cut(path, "/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	obj, found := m.Get(key)
	if !found {
		http.NotFound(w, r)
		return
	}
	if obj.Attrs.ContentType != "" {
		w.Header().Set("Content-Type", obj.Attrs.ContentType)
	}
	_, _ = w.Write(obj.Data)
}
