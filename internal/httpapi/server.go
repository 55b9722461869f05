// Package httpapi serves the assistant over HTTP: the query entry point,
// dataset reload, health, and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nkch1k/REAssistant/internal/assistant"
	"github.com/nkch1k/REAssistant/internal/config"
	"github.com/nkch1k/REAssistant/internal/ledger"
)

// Server is the read-mostly HTTP front end. Queries never mutate the
// dataset; the only write-shaped endpoint is /v1/reload, which swaps the
// dataset atomically.
type Server struct {
	router    *mux.Router
	server    *http.Server
	assistant *assistant.Assistant
	store     *ledger.Store
}

// New builds the server and its routes.
func New(cfg config.ServerConfig, a *assistant.Assistant, store *ledger.Store, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		assistant: a,
		store:     store,
	}

	s.router.HandleFunc("/v1/query", s.handleQuery).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/reload", s.handleReload).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until Shutdown.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"query\": \"...\"}"})
		return
	}

	answer := s.assistant.Answer(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.assistant.Reload(r.Context()); err != nil {
		// Queries continue against the previous dataset.
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	ds, _ := s.store.Current()
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "rows": ds.Len()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds, err := s.store.Current()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no dataset"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"rows":      ds.Len(),
		"loaded_at": s.store.LoadedAt().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writing response failed")
	}
}
