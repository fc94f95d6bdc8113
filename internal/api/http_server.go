package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"farmrent/internal/agreement"
	"farmrent/internal/config"
	"farmrent/internal/metrics"
	"farmrent/internal/service"
	"farmrent/internal/session"

	"github.com/rs/zerolog"
)

// Dependencies are the services the HTTP API reads from and mutates through.
// Ready is optional; when nil /readyz always reports ok.
type Dependencies struct {
	Window  *session.Window
	Catalog *service.CatalogService
	Issuer  *agreement.Issuer
	Ready   func(ctx context.Context) error
}

// HTTPServer exposes the booking flow over JSON and a WebSocket feed of
// request changes seen by its window.
type HTTPServer struct {
	cfg    *config.APIConfig
	deps   Dependencies
	server *http.Server
	auth   *HTTPAuth
	feed   *Feed
	logger *zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, deps: deps, logger: logger}
	srv.auth = NewHTTPAuth(cfg)
	srv.feed = NewFeed(deps.Window, logger)

	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /readyz", srv.handleReadyz)

	mux.HandleFunc("GET /api/v1/machinery", srv.handleListMachinery)
	mux.HandleFunc("GET /api/v1/machinery/{id}", srv.handleGetMachinery)
	mux.HandleFunc("POST /api/v1/machinery/{id}/reviews", srv.handleAddReview)
	mux.HandleFunc("POST /api/v1/quote", srv.handleQuote)

	mux.HandleFunc("POST /api/v1/requests", srv.handleCreateRequest)
	mux.HandleFunc("GET /api/v1/requests/{id}", srv.handleGetRequest)
	mux.HandleFunc("POST /api/v1/requests/{id}/accept", srv.handleAccept)
	mux.HandleFunc("POST /api/v1/requests/{id}/reject", srv.handleReject)
	mux.HandleFunc("POST /api/v1/requests/{id}/dispute", srv.handleDispute)
	mux.HandleFunc("POST /api/v1/requests/{id}/complete", srv.handleComplete)
	mux.HandleFunc("POST /api/v1/requests/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("GET /api/v1/requests/{id}/agreement", srv.handleAgreement)

	mux.HandleFunc("GET /api/v1/farmers/{email}/requests", srv.handleFarmerRequests)
	mux.HandleFunc("GET /api/v1/providers/{email}/requests", srv.handleProviderRequests)

	mux.HandleFunc("GET /api/v1/ws", srv.feed.ServeWS)

	handler := loggingMiddleware(logger, corsMiddleware(srv.auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.feed.Close()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-User-Email, X-User-Name, X-User-Phone")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func queryBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrade pass through the middleware chain.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
