package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth-core/internal/engine"
)

// handleTokenValid reports whether an automation id exists. Attached
// services use this to validate correlation tokens they were handed.
func (s *Server) handleTokenValid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"valid": s.registry.IsKnown(id),
	})
}

// handleInjectEvent posts an operator-submitted message into the engine
// host. The queue is bounded: a refused post is reported as 503, not
// retried.
func (s *Server) handleInjectEvent(w http.ResponseWriter, r *http.Request) {
	var msg engine.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(msg) == 0 {
		writeBadRequest(w, "empty message")
		return
	}

	if !s.engine.Post(msg) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "engine not accepting messages")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// restoredRequest is the body for POST /api/v1/system/restored.
type restoredRequest struct {
	TempDir string `json:"temp_dir"`
}

// handleSystemRestored re-runs startup loading after an external
// restore operation replaced the persisted store: reload all machines
// from storage, then re-install stock rules.
func (s *Server) handleSystemRestored(w http.ResponseWriter, r *http.Request) {
	var req restoredRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}

	s.logger.Info("store restored, reloading automations", "temp_dir", req.TempDir)

	if err := s.registry.LoadAll(r.Context()); err != nil {
		writeInternalError(w, "reloading automations: "+err.Error())
		return
	}
	if err := s.registry.InstallStockRules(r.Context(), s.stockDirs); err != nil {
		s.logger.Error("stock rule reinstall failed after restore", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"count":    s.registry.Count(),
	})
}
