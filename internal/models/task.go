package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the execution state of a task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ErrInvalidStatus is returned for a status outside the known set
var ErrInvalidStatus = errors.New("invalid task status")

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskRunning, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// IsTerminal returns true if the task has finished
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// ParseTaskStatus parses a status case-insensitively
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Counts are the flat result counters of a task run.
// They are stored as reported; nothing requires them to add up to Total.
type Counts struct {
	Total   int `json:"total_count"`
	Success int `json:"success_count"`
	Fail    int `json:"fail_count"`
	Skip    int `json:"skip_count"`
	Error   int `json:"error_count"`
}

// Consistent reports whether the outcome counters sum to Total
func (c Counts) Consistent() bool {
	return c.Success+c.Fail+c.Skip+c.Error == c.Total
}

// Validate rejects negative counters
func (c Counts) Validate() error {
	for name, v := range map[string]int{
		"total_count":   c.Total,
		"success_count": c.Success,
		"fail_count":    c.Fail,
		"skip_count":    c.Skip,
		"error_count":   c.Error,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// Task is an automated test run belonging to a project
type Task struct {
	ID             int64
	Name           string
	ProjectID      int64
	Project        *Project
	Description    string
	Status         TaskStatus
	StartTime      *time.Time
	EndTime        *time.Time
	Summary        *ResultsSummary
	Counts         Counts
	Logs           []LogEntry
	ActualResponse json.RawMessage
	CreatorID      *int64
	Creator        *User
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TaskRow is a task table row as sent to the admin view
type TaskRow struct {
	ID             *int64          `json:"id,omitempty"`
	Index          *int            `json:"index,omitempty"`
	Name           *string         `json:"name,omitempty"`
	ProjectID      *int64          `json:"project_id,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Status         *string         `json:"status,omitempty"`
	StartTime      *string         `json:"start_time,omitempty"`
	EndTime        *string         `json:"end_time,omitempty"`
	Summary        *ResultsSummary `json:"summary,omitempty"`
	TotalCount     *int            `json:"total_count,omitempty"`
	SuccessCount   *int            `json:"success_count,omitempty"`
	FailCount      *int            `json:"fail_count,omitempty"`
	SkipCount      *int            `json:"skip_count,omitempty"`
	ErrorCount     *int            `json:"error_count,omitempty"`
	Logs           *[]LogEntry     `json:"logs,omitempty"`
	ActualResponse json.RawMessage `json:"actual_response,omitempty"`
	Project        *ProjectRef     `json:"project,omitempty"`
	CreatedAt      *string         `json:"created_at,omitempty"`
	UpdatedAt      *string         `json:"updated_at,omitempty"`
	Creator        *CreatorRef     `json:"creator,omitempty"`
}

// Row converts the task into a table row at the given display index
func (t *Task) Row(index int) TaskRow {
	row := TaskRow{
		ID:             ptr(t.ID),
		Index:          ptr(index),
		Name:           ptr(t.Name),
		ProjectID:      ptr(t.ProjectID),
		Description:    ptr(t.Description),
		Status:         ptr(string(t.Status)),
		StartTime:      formatTimePtr(t.StartTime),
		EndTime:        formatTimePtr(t.EndTime),
		Summary:        t.Summary,
		TotalCount:     ptr(t.Counts.Total),
		SuccessCount:   ptr(t.Counts.Success),
		FailCount:      ptr(t.Counts.Fail),
		SkipCount:      ptr(t.Counts.Skip),
		ErrorCount:     ptr(t.Counts.Error),
		ActualResponse: t.ActualResponse,
		Project:        t.Project.Ref(),
		CreatedAt:      FormatTime(t.CreatedAt),
		UpdatedAt:      FormatTime(t.UpdatedAt),
		Creator:        t.Creator.Ref(),
	}
	if t.Logs != nil {
		row.Logs = ptr(t.Logs)
	}
	if row.Project == nil {
		row.Project = &ProjectRef{ID: ptr(t.ProjectID)}
	}
	return row
}

// TaskCreate holds the inputs for a new task
type TaskCreate struct {
	Name        string `json:"name"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
	CreatorID   *int64 `json:"creator_id,omitempty"`
}

// Normalize trims the text inputs
func (c *TaskCreate) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Name        *string     `json:"name,omitempty"`
	ProjectID   *int64      `json:"project_id,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.ProjectID == nil && p.Description == nil && p.Status == nil
}

// Apply copies the set fields onto task
func (p TaskPatch) Apply(task *Task) {
	if p.Name != nil {
		task.Name = strings.TrimSpace(*p.Name)
	}
	if p.ProjectID != nil {
		task.ProjectID = *p.ProjectID
		task.Project = nil
	}
	if p.Description != nil {
		task.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
}

// ResultReport is an execution outcome reported for a task
type ResultReport struct {
	Status    TaskStatus      `json:"status"`
	StartTime string          `json:"start_time,omitempty"`
	EndTime   string          `json:"end_time,omitempty"`
	Summary   *ResultsSummary `json:"summary,omitempty"`
	Counts
	Logs           []LogEntry      `json:"logs,omitempty"`
	ActualResponse json.RawMessage `json:"actual_response,omitempty"`
}

// Times parses the reported start and end times
func (r ResultReport) Times() (start, end *time.Time, err error) {
	if strings.TrimSpace(r.StartTime) != "" {
		t, err := ParseTime(r.StartTime)
		if err != nil {
			return nil, nil, fmt.Errorf("start_time: %w", err)
		}
		start = &t
	}
	if strings.TrimSpace(r.EndTime) != "" {
		t, err := ParseTime(r.EndTime)
		if err != nil {
			return nil, nil, fmt.Errorf("end_time: %w", err)
		}
		end = &t
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, errors.New("start_time is after end_time")
	}
	return start, end, nil
}

// TaskFilter defines storage-level filters for listing tasks
type TaskFilter struct {
	NameLike    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	ProjectID   *int64
	Status      TaskStatus
	Limit       int
	Offset      int
}

// TaskQuery is a task list request from the admin view
type TaskQuery struct {
	Criteria  SearchCriteria
	ProjectID *int64
	Status    TaskStatus
	Page      PageRequest
}

// Filter converts the query into storage filters
func (q TaskQuery) Filter() (TaskFilter, error) {
	from, to, err := q.Criteria.CreatedBounds()
	if err != nil {
		return TaskFilter{}, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return TaskFilter{}, fmt.Errorf("%w: %q", ErrInvalidStatus, q.Status)
	}
	page := q.Page.Normalize()
	return TaskFilter{
		NameLike:    q.Criteria.NameFragment(),
		CreatedFrom: from,
		CreatedTo:   to,
		ProjectID:   q.ProjectID,
		Status:      q.Status,
		Limit:       page.PageSize,
		Offset:      page.Offset(),
	}, nil
}
