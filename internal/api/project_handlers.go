package api

import (
	"net/http"

	"github.com/terra-clan/autotest-engine/internal/models"
)

type projectUpdateRequest struct {
	ID int64 `json:"id"`
	models.ProjectPatch
}

type deleteRequest struct {
	IDs []int64 `json:"ids"`
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
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

	result, err := s.manager.ListProjects(r.Context(), models.ProjectQuery{Criteria: criteria, Page: page})
	if err != nil {
		respondManagerError(w, r, err, "list projects")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query(), "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	p, err := s.manager.GetProject(r.Context(), id)
	if err != nil {
		respondManagerError(w, r, err, "get project")
		return
	}

	respondJSON(w, http.StatusOK, p.Row(1))
}

func (s *Server) handleProjectOptions(w http.ResponseWriter, r *http.Request) {
	options, err := s.manager.ProjectOptions(r.Context())
	if err != nil {
		respondManagerError(w, r, err, "list project options")
		return
	}

	respondJSON(w, http.StatusOK, options)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.ProjectCreate
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.manager.CreateProject(r.Context(), req)
	if err != nil {
		respondManagerError(w, r, err, "create project")
		return
	}

	respondJSON(w, http.StatusCreated, p.Row(1))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "id is required")
		return
	}

	p, err := s.manager.UpdateProject(r.Context(), req.ID, req.ProjectPatch)
	if err != nil {
		respondManagerError(w, r, err, "update project")
		return
	}

	respondJSON(w, http.StatusOK, p.Row(1))
}

func (s *Server) handleDeleteProjects(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := s.manager.DeleteProjects(r.Context(), req.IDs)
	if err != nil {
		respondManagerError(w, r, err, "delete projects")
		return
	}

	respondJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

func (s *Server) handleExportProjects(w http.ResponseWriter, r *http.Request) {
	var criteria models.SearchCriteria
	if !decodeOptionalBody(w, r, &criteria) {
		return
	}

	rows, err := s.manager.ExportProjects(r.Context(), criteria)
	if err != nil {
		respondManagerError(w, r, err, "export projects")
		return
	}

	s.writeCSV(w, "projects", projectCSVHeader, len(rows), func(i int) []string {
		return projectCSVRecord(rows[i])
	})
}
