package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lgtv/internal/bridges/lgtv"
	"github.com/nerrad567/gray-logic-lgtv/internal/entry"
)

// entryResponse is an entry plus its runtime status.
type entryResponse struct {
	entry.Entry
	EffectiveTVID int  `json:"effective_tv_id"`
	Loaded        bool `json:"loaded"`
}

// provisionRequest is the body of POST /entries.
type provisionRequest struct {
	Port string `json:"port"`
	TVID *int   `json:"tv_id"`
}

// optionsRequest is the body of PATCH /entries/{id}/options.
type optionsRequest struct {
	TVID *int `json:"tv_id"`
}

func (s *Server) toEntryResponse(e entry.Entry) entryResponse {
	return entryResponse{
		Entry:         e,
		EffectiveTVID: e.EffectiveTVID(),
		Loaded:        s.runtime.IsLoaded(e.ID),
	}
}

// handleListPorts returns the serial ports a TV can be configured on.
func (s *Server) handleListPorts(w http.ResponseWriter, _ *http.Request) {
	ports, err := s.provisioner.Ports()
	if err != nil {
		s.logger.Error("failed to list serial ports", "error", err)
		writeInternalError(w, "failed to list serial ports")
		return
	}
	if ports == nil {
		ports = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ports": ports})
}

// handleListEntries returns every stored entry.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.entries.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list entries", "error", err)
		writeInternalError(w, "failed to list entries")
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"count":   len(out),
	})
}

// handleGetEntry returns one entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEntryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toEntryResponse(e))
}

// handleProvision validates and stores a new TV.
// The request blocks for the whole validation sequence.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Port == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "port is required")
		return
	}
	tvID := 0
	if req.TVID != nil {
		tvID = *req.TVID
	}

	e, err := s.provisioner.Provision(r.Context(), req.Port, tvID)
	if err != nil {
		if errors.Is(err, lgtv.ErrAlreadyConfigured) {
			writeJSON(w, http.StatusConflict, AbortResponse{Reason: "already_configured"})
			return
		}
		key := lgtv.Classify(err)
		if key == lgtv.ErrKeyException {
			s.logger.Error("unexpected provisioning error", "port", req.Port, "tv_id", tvID, "error", err)
		}
		writeFormError(w, key)
		return
	}

	writeJSON(w, http.StatusCreated, s.toEntryResponse(e))
}

// handleUpdateOptions changes the set ID of an entry and reloads it.
func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	var req optionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TVID == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "tv_id is required")
		return
	}

	e, err := s.provisioner.SetOptions(r.Context(), chi.URLParam(r, "id"), *req.TVID)
	if err != nil {
		if errors.Is(err, lgtv.ErrInvalidTVID) {
			writeFormError(w, lgtv.ErrKeyValueError)
			return
		}
		s.writeEntryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toEntryResponse(e))
}

// handleDeleteEntry unloads and deletes an entry.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.provisioner.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeEntryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeEntryError(w http.ResponseWriter, err error) {
	if errors.Is(err, entry.ErrEntryNotFound) {
		writeNotFound(w, "entry not found")
		return
	}
	s.logger.Error("entry operation failed", "error", err)
	writeInternalError(w, "entry operation failed")
}
