// Package server exposes a read-only HTTP API over the monitor's latest
// scan: recent reports, cache counters, and market status.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/contactkeval/roll-monitor/internal/cache"
	"github.com/contactkeval/roll-monitor/internal/logger"
	"github.com/contactkeval/roll-monitor/internal/market"
	"github.com/contactkeval/roll-monitor/internal/roll"
)

// Snapshot is the latest completed scan, published by the polling loop.
type Snapshot struct {
	ScanID    string        `json:"scan_id"`
	Timestamp time.Time     `json:"timestamp"`
	Reports   []roll.Report `json:"reports"`
}

// Server serves the read API. The polling loop calls Publish after each
// scan; handlers only ever read the held snapshot.
type Server struct {
	quotes *cache.QuoteCache

	mu     sync.RWMutex
	latest *Snapshot
}

// New constructs a server over the shared quote cache.
func New(quotes *cache.QuoteCache) *Server {
	return &Server{quotes: quotes}
}

// Publish replaces the held snapshot.
func (s *Server) Publish(scanID string, reports []roll.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &Snapshot{ScanID: scanID, Timestamp: time.Now().UTC(), Reports: reports}
}

// Handler builds the routed, zstd-capable handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reports", s.getReports).Methods(http.MethodGet)
	api.HandleFunc("/cache/stats", s.getCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/market/status", s.getMarketStatus).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return ZstdMiddleware(r)
}

// ListenAndServe runs the API on addr. Blocks until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	logger.Infof("read API listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) getReports(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scan completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) getCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.quotes.Stats())
}

func (s *Server) getMarketStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, market.GetStatus(time.Now()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("encode response: %v", err)
	}
}
