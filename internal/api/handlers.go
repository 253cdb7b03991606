package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/terra-clan/autotest-engine/internal/autotest"
	"github.com/terra-clan/autotest-engine/internal/health"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondManagerError maps manager errors onto HTTP statuses.
// Unexpected errors are logged and reported with a generic message.
func respondManagerError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, autotest.ErrProjectNotFound):
		respondError(w, http.StatusNotFound, "project_not_found", err.Error())
	case errors.Is(err, autotest.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, autotest.ErrEnvironmentNotFound):
		respondError(w, http.StatusNotFound, "environment_not_found", err.Error())
	case errors.Is(err, autotest.ErrProjectExists):
		respondError(w, http.StatusConflict, "project_exists", err.Error())
	case errors.Is(err, autotest.ErrEnvironmentExists):
		respondError(w, http.StatusConflict, "environment_exists", err.Error())
	case errors.Is(err, autotest.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		slog.Error("failed to "+action,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

// decodeBody decodes a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for endpoints where an empty body means defaults
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.clock().UTC().Format(time.RFC3339),
	})
}

type readiness struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Failing []string          `json:"failing,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.health.CheckAll(r.Context())

	ready := readiness{Status: "ready", Checks: make(map[string]string, len(results))}
	for _, name := range s.health.List() {
		err, ok := results[name]
		if !ok {
			continue
		}
		if err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			ready.Checks[name] = err.Error()
			ready.Failing = append(ready.Failing, name)
			continue
		}
		ready.Checks[name] = "ok"
	}

	if !health.Healthy(results) {
		ready.Status = "not_ready"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(apiResponse{
			Success: false,
			Data:    ready,
			Error:   &apiError{Code: "not_ready", Message: "service not ready"},
		})
		return
	}

	respondJSON(w, http.StatusOK, ready)
}
