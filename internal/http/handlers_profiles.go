package http

import (
	"net/http"

	"weddingsync/internal/core"
	"weddingsync/internal/services"
)

type profileRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type profileList struct {
	Profiles []core.Profile `json:"profiles"`
	Active   core.Profile   `json:"activeProfile"`
}

type deletionRequest struct {
	Kind services.DeletionKind `json:"kind" validate:"required"`
	ID   string                `json:"id" validate:"required"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	snap := s.ws.Snapshot()
	writeJSON(w, http.StatusOK, profileList{Profiles: snap.Profiles, Active: snap.Active})
}

func (s *Server) handleAddProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.ws.AddProfile(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleSwitchProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.ws.SwitchProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleRequestDeletion is the first step of every deletion: it returns the
// token the client has to confirm.
func (s *Server) handleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	var req deletionRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.ws.RequestDeletion(req.Kind, req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (s *Server) handleConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	p, err := s.ws.ConfirmDeletion(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancelDeletion(w http.ResponseWriter, r *http.Request) {
	s.ws.CancelDeletion(r.PathValue("token"))
	w.WriteHeader(http.StatusNoContent)
}
