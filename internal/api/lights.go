package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/prysmalight/prysma-core/internal/light"
)

// addLightRequest is the request body for POST /lights.
type addLightRequest struct {
	ID        string           `json:"id"`
	LightData light.LightInput `json:"lightData"`
}

// handleListLights returns every light ordered by position.
func (s *Server) handleListLights(w http.ResponseWriter, r *http.Request) {
	lights, err := s.lights.FindAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lights": lights, "count": len(lights)})
}

// handleGetLight returns a single light with its state.
func (s *Server) handleGetLight(w http.ResponseWriter, r *http.Request) {
	l, err := s.lights.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleAddLight registers a new light and subscribes to its topics.
func (s *Server) handleAddLight(w http.ResponseWriter, r *http.Request) {
	var req addLightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	l, err := s.lights.AddLight(r.Context(), req.ID, req.LightData)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// handleUpdateLight merges name and/or pos into a light.
func (s *Server) handleUpdateLight(w http.ResponseWriter, r *http.Request) {
	var in light.LightInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	l, err := s.lights.UpdateLight(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleRemoveLight deletes a light and returns it as it was.
func (s *Server) handleRemoveLight(w http.ResponseWriter, r *http.Request) {
	l, err := s.lights.RemoveLight(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleGetLightState returns the stored state of a light.
func (s *Server) handleGetLightState(w http.ResponseWriter, r *http.Request) {
	st, err := s.lights.FindStateByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSetLightState commands a light. Omitted fields are left unchanged.
func (s *Server) handleSetLightState(w http.ResponseWriter, r *http.Request) {
	var in light.LightStateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	st, err := s.lights.CommandLightState(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleLightHistory returns recent state transitions, newest first.
func (s *Server) handleLightHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.lights.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
}
