package sniffled

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psychicsniffle/sniffle/pkg/logger"
)

// HTTPServer exposes health, metrics and read-only session views
type HTTPServer struct {
	mux     *http.ServeMux
	service *Service
}

// NewHTTPServer builds the HTTP surface of the daemon. gatherer may be nil to omit /metrics.
func NewHTTPServer(service *Service, gatherer prometheus.Gatherer) *HTTPServer {
	s := &HTTPServer{
		mux:     http.NewServeMux(),
		service: service,
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}/histograms", s.handleHistograms)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  s.service.Store().Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions := s.service.Store().List(limit)
	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.service.Store().Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Info())
}

func (s *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.Store().Delete(id); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.service.recorder != nil {
		s.service.recorder.SessionClosed(id)
	}
	logger.Info("session deleted over http", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleHistograms(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.service.Store().Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	hists, ok := sess.Histograms()
	if !ok {
		s.writeError(w, http.StatusConflict, "session analyser keeps no histograms")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"generation": sess.Generation(),
		"offsets":    hists,
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
