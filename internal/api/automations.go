package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// createAutomationRequest is the body for POST /api/v1/automations.
type createAutomationRequest struct {
	ID      string `json:"id"`
	Spec    string `json:"spec"`
	Enabled bool   `json:"enabled"`
}

// updateAutomationRequest is the body for PUT /api/v1/automations/{id}.
// A nil Spec leaves the specification untouched.
type updateAutomationRequest struct {
	Spec    *string `json:"spec,omitempty"`
	Enabled bool    `json:"enabled"`
}

// enabledRequest is the body for PUT /api/v1/automations/{id}/enabled.
type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

// handleListAutomations returns summaries of all registered automations.
func (s *Server) handleListAutomations(w http.ResponseWriter, _ *http.Request) {
	summaries := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": summaries,
		"count":       len(summaries),
	})
}

// handleCreateAutomation registers a new automation.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req createAutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.registry.AddMachine(r.Context(), req.ID, req.Spec, req.Enabled); err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": req.ID, "enabled": req.Enabled})
}

// handleGetAutomation returns one automation in full.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	m, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleUpdateAutomation replaces the specification and/or enabled
// state of an automation.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateAutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if req.Spec != nil {
		if err := s.registry.SetSpecification(r.Context(), id, *req.Spec); err != nil {
			writeRegistryError(w, err)
			return
		}
	}
	if err := s.registry.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		writeRegistryError(w, err)
		return
	}

	m, err := s.registry.Get(id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleDeleteAutomation removes an automation.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RemoveMachine(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetAutomationEnabled flips only the enabled state.
func (s *Server) handleSetAutomationEnabled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.registry.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": req.Enabled})
}
