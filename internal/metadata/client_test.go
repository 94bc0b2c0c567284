package metadata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"meshport/internal/metadata"
	"meshport/internal/services"
)

func TestExtractAssetID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.sandbox.game/en/assets/x/abc123/", "abc123", true},
		{"  https://host/a/b  ", "b", true},
		{"abc", "abc", true},
		{"///", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := metadata.ExtractAssetID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractAssetID(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func newClient(t *testing.T, handler http.HandlerFunc, opts ...metadata.Option) *metadata.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := metadata.New("test-key", srv.URL+"/v2", 5*time.Second, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestResolveBuildsRequestAndExtractsID(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/test-key/getNFTMetadata" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("contractAddress") != "0xabc" || q.Get("tokenId") != "42" || q.Get("refreshCache") != "false" {
			t.Errorf("unexpected query %v", q)
		}
		if r.Header.Get("accept") != "application/json" {
			t.Errorf("missing accept header")
		}
		_, _ = w.Write([]byte(`{"metadata":{"external_url":"https://www.sandbox.game/en/assets/avatar/f00d-1/"}}`))
	})

	id, err := client.Resolve(context.Background(), "0xabc", "42")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != "f00d-1" {
		t.Fatalf("asset id = %q", id)
	}
}

func TestResolveFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		marker  error
		message string
	}{
		{"non 2xx", http.StatusBadGateway, "", services.ErrTransport, "502"},
		{"bad json", http.StatusOK, "{not json", services.ErrDataShape, "decode"},
		{"missing metadata", http.StatusOK, `{}`, services.ErrDataShape, "no external_url found in nft metadata"},
		{"blank external url", http.StatusOK, `{"metadata":{"external_url":"  "}}`, services.ErrDataShape, "no external_url found in nft metadata"},
		{"no segments", http.StatusOK, `{"metadata":{"external_url":"///"}}`, services.ErrDataShape, "no asset id found in external_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Resolve(context.Background(), "0xabc", "1")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("error %q missing %q", err, tt.message)
			}
		})
	}
}

func TestResolveTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := metadata.New("k", base, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Resolve(context.Background(), "c", "t"); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestResolveRejectsBlankInputsWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	if _, err := client.Resolve(context.Background(), "", "1"); !errors.Is(err, services.ErrDataShape) {
		t.Fatalf("expected data shape error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := metadata.New(" ", "", time.Second); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRateLimitHonorsContext(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"metadata":{"external_url":"https://h/a/id"}}`))
	}, metadata.WithRateLimit(0.001))

	if _, err := client.Resolve(context.Background(), "c", "t"); err != nil {
		t.Fatalf("first call should use burst: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.Resolve(ctx, "c", "t"); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected limiter wait to fail as transport error, got %v", err)
	}
}
