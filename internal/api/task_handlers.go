package api

import (
	"net/http"

	"github.com/terra-clan/autotest-engine/internal/models"
)

type taskUpdateRequest struct {
	ID int64 `json:"id"`
	models.TaskPatch
}

type resultRequest struct {
	ID int64 `json:"id"`
	models.ResultReport
}

type taskExportRequest struct {
	models.SearchCriteria
	ProjectID *int64 `json:"project_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query, err := parseTaskQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.manager.ListTasks(r.Context(), query)
	if err != nil {
		respondManagerError(w, r, err, "list tasks")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query(), "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	t, err := s.manager.GetTask(r.Context(), id)
	if err != nil {
		respondManagerError(w, r, err, "get task")
		return
	}

	respondJSON(w, http.StatusOK, t.Row(1))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.TaskCreate
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := s.manager.CreateTask(r.Context(), req)
	if err != nil {
		respondManagerError(w, r, err, "create task")
		return
	}

	respondJSON(w, http.StatusCreated, t.Row(1))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "id is required")
		return
	}

	t, err := s.manager.UpdateTask(r.Context(), req.ID, req.TaskPatch)
	if err != nil {
		respondManagerError(w, r, err, "update task")
		return
	}

	respondJSON(w, http.StatusOK, t.Row(1))
}

func (s *Server) handleDeleteTasks(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := s.manager.DeleteTasks(r.Context(), req.IDs)
	if err != nil {
		respondManagerError(w, r, err, "delete tasks")
		return
	}

	respondJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

func (s *Server) handleReportResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "id is required")
		return
	}

	t, err := s.manager.ReportResult(r.Context(), req.ID, req.ResultReport)
	if err != nil {
		respondManagerError(w, r, err, "report task result")
		return
	}

	respondJSON(w, http.StatusOK, t.Row(1))
}

func (s *Server) handleExportTasks(w http.ResponseWriter, r *http.Request) {
	var req taskExportRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	rows, err := s.manager.ExportTasks(r.Context(), models.TaskQuery{
		Criteria:  req.SearchCriteria,
		ProjectID: req.ProjectID,
		Status:    status,
	})
	if err != nil {
		respondManagerError(w, r, err, "export tasks")
		return
	}

	s.writeCSV(w, "tasks", taskCSVHeader, len(rows), func(i int) []string {
		return taskCSVRecord(rows[i])
	})
}
