package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meshport/internal/api"
	"meshport/internal/config"
	"meshport/internal/ledger"
	"meshport/internal/logging"
	"meshport/internal/services"
)

const maxRequestBytes = 64 << 10

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Conversions run inside the request; no write deadline.
		IdleTimeout: 60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/resolve", s.handleResolve)
	apiMux.HandleFunc("/api/fetch", s.handleFetch)
	apiMux.HandleFunc("/api/convert", s.handleConvert)
	apiMux.HandleFunc("/api/run", s.handleRun)
	apiMux.HandleFunc("/api/random", s.handleRandom)
	apiMux.HandleFunc("/api/history", s.handleHistory)
	apiMux.HandleFunc("/api/history/clear", s.handleClearHistory)
	apiMux.HandleFunc("/api/status", s.handleStatus)

	mux := http.NewServeMux()
	mux.Handle("/api/", authMiddleware(token, apiMux))
	mux.Handle("/metrics", promhttp.HandlerFor(s.daemon.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.log().Info("api server disabled (paths.api_bind is empty)")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp := s.daemon.service.Resolve(r.Context(), req.ContractID, req.TokenID)
	s.writeResponse(w, resp.Failure, resp)
}

func (s *apiServer) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req api.FetchRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp := s.daemon.service.FetchDescription(r.Context(), req.AssetID)
	s.writeResponse(w, resp.Failure, resp)
}

func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req api.ConvertRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp := s.daemon.service.Convert(r.Context(), req.AssetID, req.URL)
	s.writeResponse(w, resp.Failure, resp)
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp := s.daemon.service.Run(r.Context(), req.ContractID, req.TokenID)
	s.writeResponse(w, resp.Failure, resp)
}

func (s *apiServer) handleRandom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := s.daemon.service.Random(r.Context())
	s.writeResponse(w, resp.Failure, resp)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	if query.Has("asset") {
		resp := s.daemon.service.LatestForAsset(r.Context(), query.Get("asset"))
		s.writeResponse(w, resp.Failure, resp)
		return
	}
	var statuses []ledger.Status
	for _, value := range query["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := ledger.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}
	resp := s.daemon.service.History(r.Context(), statuses...)
	s.writeResponse(w, resp.Failure, resp)
}

func (s *apiServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	var req api.ClearHistoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp := s.daemon.service.ClearHistory(r.Context(), req.FailedOnly)
	s.writeResponse(w, resp.Failure, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LedgerPath:   status.LedgerPath,
		LockFilePath: status.LockFilePath,
		StagingDir:   status.StagingDir,
		RunStats:     api.StatsByName(status.RunStats),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeResponse(w http.ResponseWriter, failure api.Failure, payload any) {
	s.writeJSON(w, statusForKind(failure.ErrorKind), payload)
}

// statusForKind maps an error kind to an HTTP status; the body always carries
// the kind itself.
func statusForKind(kind string) int {
	switch kind {
	case "":
		return http.StatusOK
	case services.KindOf(services.ErrDataShape):
		return http.StatusUnprocessableEntity
	case services.KindOf(services.ErrTransport):
		return http.StatusBadGateway
	case services.KindOf(services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.Failure{Error: message, ErrorKind: services.KindOf(services.ErrDataShape)})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
