package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lgtv/internal/bridges/lgtv"
)

// entityResponse is the API view of a running entity.
type entityResponse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Kind  lgtv.Kind      `json:"kind"`
	State map[string]any `json:"state"`
}

func toEntityResponse(ent lgtv.Entity) entityResponse {
	return entityResponse{
		ID:    ent.ID(),
		Name:  ent.Name(),
		Kind:  ent.Kind(),
		State: ent.State(),
	}
}

// handleListEntities returns every running entity with its cached state.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	kind := lgtv.Kind(r.URL.Query().Get("kind"))

	entities := s.runtime.Entities()
	out := make([]entityResponse, 0, len(entities))
	for _, ent := range entities {
		if kind != "" && ent.Kind() != kind {
			continue
		}
		out = append(out, toEntityResponse(ent))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": out,
		"count":    len(out),
	})
}

// handleGetEntity returns one entity with its cached state.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	ent, err := s.runtime.Entity(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(ent))
}

// handleEntityAction runs an action and returns the resulting state.
// The request blocks until the set has answered (or a remote replay ends).
func (s *Server) handleEntityAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var action lgtv.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if action.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "name is required")
		return
	}

	if err := s.runtime.Apply(id, action); err != nil {
		s.writeActionError(w, id, action.Name, err)
		return
	}

	ent, err := s.runtime.Entity(id)
	if err != nil {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(ent))
}

// handleRefreshEntity reads the entity's state from the set.
func (s *Server) handleRefreshEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.runtime.Refresh(id); err != nil {
		s.writeActionError(w, id, "refresh", err)
		return
	}
	ent, err := s.runtime.Entity(id)
	if err != nil {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(ent))
}

// writeActionError maps an action failure onto an HTTP status.
func (s *Server) writeActionError(w http.ResponseWriter, id, action string, err error) {
	switch {
	case errors.Is(err, lgtv.ErrEntryNotLoaded):
		writeNotFound(w, "entity not found")
	case errors.Is(err, lgtv.ErrNotAcknowledged):
		writeError(w, http.StatusBadGateway, ErrCodeNotAnswered, err.Error())
	case errors.Is(err, lgtv.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		switch lgtv.Classify(err) {
		case lgtv.ErrKeyValueError:
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case lgtv.ErrKeyCannotConnect:
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
		default:
			s.logger.Error("entity action failed", "entity_id", id, "action", action, "error", err)
			writeInternalError(w, "action failed")
		}
	}
}
