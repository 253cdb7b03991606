package client

import (
	"encoding/json"

	"github.com/terra-clan/autotest-engine/internal/models"
)

// Response records as the API renders them
type (
	ProjectRow      = models.ProjectRow
	ProjectSelector = models.ProjectSelector
	ProjectRef      = models.ProjectRef
	EnvironmentRow  = models.EnvironmentRow
	CreatorRef      = models.CreatorRef
	TaskRow         = models.TaskRow
	ResultsSummary  = models.ResultsSummary
	ResultDetail    = models.ResultDetail
	DetailKind      = models.DetailKind
	LogEntry        = models.LogEntry
	Page[T any]     = models.Page[T]
)

// TaskStatus is the execution state of a task
type TaskStatus = models.TaskStatus

const (
	TaskPending   = models.TaskPending
	TaskRunning   = models.TaskRunning
	TaskCompleted = models.TaskCompleted
	TaskFailed    = models.TaskFailed
)

// CreateProjectRequest represents a project creation request
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatorID   *int64 `json:"creator_id,omitempty"`
}

// UpdateProjectRequest represents a partial project update. Nil fields are left unchanged.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateTaskRequest represents a task creation request
type CreateTaskRequest struct {
	Name        string `json:"name"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description,omitempty"`
	CreatorID   *int64 `json:"creator_id,omitempty"`
}

// UpdateTaskRequest represents a partial task update
type UpdateTaskRequest struct {
	Name        *string     `json:"name,omitempty"`
	ProjectID   *int64      `json:"project_id,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
}

// ReportResultRequest represents an execution outcome for a task.
// StartTime and EndTime use the "2006-01-02 15:04:05" layout.
type ReportResultRequest struct {
	Status         TaskStatus      `json:"status"`
	StartTime      string          `json:"start_time,omitempty"`
	EndTime        string          `json:"end_time,omitempty"`
	Summary        *ResultsSummary `json:"summary,omitempty"`
	TotalCount     int             `json:"total_count"`
	SuccessCount   int             `json:"success_count"`
	FailCount      int             `json:"fail_count"`
	SkipCount      int             `json:"skip_count"`
	ErrorCount     int             `json:"error_count"`
	Logs           []LogEntry      `json:"logs,omitempty"`
	ActualResponse json.RawMessage `json:"actual_response,omitempty"`
}

// CreateEnvironmentRequest represents an environment creation request
type CreateEnvironmentRequest struct {
	Name        string `json:"name"`
	BaseURL     string `json:"base_url,omitempty"`
	Description string `json:"description,omitempty"`
	CreatorID   *int64 `json:"creator_id,omitempty"`
}

// UpdateEnvironmentRequest represents a partial environment update
type UpdateEnvironmentRequest struct {
	Name        *string `json:"name,omitempty"`
	BaseURL     *string `json:"base_url,omitempty"`
	Description *string `json:"description,omitempty"`
}
