package api

import (
	"net/http"

	"github.com/terra-clan/autotest-engine/internal/models"
)

type environmentUpdateRequest struct {
	ID int64 `json:"id"`
	models.EnvironmentPatch
}

func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	criteria, err := parseCriteria(q)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	page, err := parsePage(q)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.manager.ListEnvironments(r.Context(), models.EnvironmentQuery{Criteria: criteria, Page: page})
	if err != nil {
		respondManagerError(w, r, err, "list environments")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query(), "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	e, err := s.manager.GetEnvironment(r.Context(), id)
	if err != nil {
		respondManagerError(w, r, err, "get environment")
		return
	}

	respondJSON(w, http.StatusOK, e.Row(1))
}

func (s *Server) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var req models.EnvironmentCreate
	if !decodeBody(w, r, &req) {
		return
	}

	e, err := s.manager.CreateEnvironment(r.Context(), req)
	if err != nil {
		respondManagerError(w, r, err, "create environment")
		return
	}

	respondJSON(w, http.StatusCreated, e.Row(1))
}

func (s *Server) handleUpdateEnvironment(w http.ResponseWriter, r *http.Request) {
	var req environmentUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "id is required")
		return
	}

	e, err := s.manager.UpdateEnvironment(r.Context(), req.ID, req.EnvironmentPatch)
	if err != nil {
		respondManagerError(w, r, err, "update environment")
		return
	}

	respondJSON(w, http.StatusOK, e.Row(1))
}

func (s *Server) handleDeleteEnvironments(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := s.manager.DeleteEnvironments(r.Context(), req.IDs)
	if err != nil {
		respondManagerError(w, r, err, "delete environments")
		return
	}

	respondJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}
