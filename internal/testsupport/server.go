package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// AssetServer emulates the metadata provider, the content host and the
// auxiliary host on one httptest server.
type AssetServer struct {
	*httptest.Server

	mu       sync.Mutex
	tokens   map[string]string
	scenes   map[string][]byte
	skeleton []byte
	requests map[string]int
}

// NewAssetServer starts an AssetServer that is closed with the test.
func NewAssetServer(t testing.TB) *AssetServer {
	t.Helper()
	s := &AssetServer{
		tokens:   map[string]string{},
		scenes:   map[string][]byte{},
		skeleton: []byte("skeleton-glb"),
		requests: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddToken maps contract/token to an external_url ending in assetID.
func (s *AssetServer) AddToken(contractID, tokenID, assetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[contractID+"/"+tokenID] = "https://www.sandbox.game/en/assets/avatar/" + assetID + "/"
}

// AddScene serves data as assetID's scene description.
func (s *AssetServer) AddScene(assetID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[assetID] = data
}

// Requests reports how many times path was requested.
func (s *AssetServer) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *AssetServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	s.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/getNFTMetadata"):
		s.mu.Lock()
		externalURL, ok := s.tokens[r.URL.Query().Get("contractAddress")+"/"+r.URL.Query().Get("tokenId")]
		s.mu.Unlock()
		payload := map[string]any{"metadata": map[string]any{}}
		if ok {
			payload["metadata"] = map[string]any{"external_url": externalURL}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	case r.URL.Path == "/data/skeleton.glb":
		_, _ = w.Write(s.skeleton)
	case strings.HasPrefix(r.URL.Path, "/assets/") && strings.HasSuffix(r.URL.Path, "/gltf"):
		assetID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/assets/"), "/gltf")
		s.mu.Lock()
		data, ok := s.scenes[assetID]
		s.mu.Unlock()
		if !ok {
			http.Error(w, fmt.Sprintf("asset %s not found", assetID), http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}
