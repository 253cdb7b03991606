package autotest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/terra-clan/autotest-engine/internal/models"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

// ListTasks returns one page of task rows matching the query
func (s *Service) ListTasks(ctx context.Context, q models.TaskQuery) (models.Page[models.TaskRow], error) {
	filters, err := q.Filter()
	if err != nil {
		return models.Page[models.TaskRow]{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	tasks, total, err := s.repo.ListTasks(ctx, filters)
	if err != nil {
		return models.Page[models.TaskRow]{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	rows := make([]models.TaskRow, len(tasks))
	for i, t := range tasks {
		rows[i] = t.Row(filters.Offset + i + 1)
	}
	return models.NewPage(q.Page, total, rows), nil
}

// GetTask returns a task by ID
func (s *Service) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// CreateTask validates and stores a new pending task
func (s *Service) CreateTask(ctx context.Context, in models.TaskCreate) (*models.Task, error) {
	in.Normalize()
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, in.ProjectID); err != nil {
		return nil, err
	}

	now := s.now()
	t := &models.Task{
		Name:        in.Name,
		ProjectID:   in.ProjectID,
		Description: in.Description,
		Status:      models.TaskPending,
		CreatorID:   in.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, taskWriteError(err)
	}

	slog.Info("task created", "task_id", t.ID, "project_id", t.ProjectID, "name", t.Name)
	return s.GetTask(ctx, t.ID)
}

// UpdateTask applies a partial update to a task
func (s *Service) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	if patch.IsEmpty() {
		return nil, invalid("nothing to update")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, models.ErrInvalidStatus)
	}

	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.ProjectID != nil && *patch.ProjectID != t.ProjectID {
		if err := s.requireProject(ctx, *patch.ProjectID); err != nil {
			return nil, err
		}
	}

	patch.Apply(t)
	if err := validateName(t.Name); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()

	if err := s.saveTask(ctx, t); err != nil {
		return nil, err
	}

	slog.Info("task updated", "task_id", t.ID, "status", t.Status)
	return s.GetTask(ctx, t.ID)
}

// DeleteTasks deletes tasks by ID
func (s *Service) DeleteTasks(ctx context.Context, ids []int64) (int64, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.DeleteTasks(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	if n == 0 {
		return 0, ErrTaskNotFound
	}

	slog.Info("tasks deleted", "requested", len(ids), "deleted", n)
	return n, nil
}

// ReportResult records an execution outcome for a task.
// Counts are stored exactly as reported, even when they do not add up.
func (s *Service) ReportResult(ctx context.Context, id int64, report models.ResultReport) (*models.Task, error) {
	if !report.Status.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, models.ErrInvalidStatus)
	}
	if err := report.Counts.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	start, end, err := report.Times()
	if err != nil {
		return nil, invalid("%v", err)
	}

	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	// A non-terminal report on a finished task starts a new run.
	rerun := !report.Status.IsTerminal() && t.Status.IsTerminal()
	switch {
	case start != nil:
		t.StartTime = start
	case report.Status == models.TaskPending:
		if rerun {
			t.StartTime = nil
		}
	case t.StartTime == nil || rerun:
		t.StartTime = &now
	}
	switch {
	case !report.Status.IsTerminal():
		t.EndTime = nil
	case end != nil:
		t.EndTime = end
	case t.EndTime == nil:
		t.EndTime = &now
	}
	if t.StartTime != nil && t.EndTime != nil && t.StartTime.After(*t.EndTime) {
		return nil, invalid("start_time is after end_time")
	}

	if !report.Counts.Consistent() {
		slog.Warn("task counts do not add up",
			"task_id", id,
			"total", report.Total,
			"success", report.Success,
			"fail", report.Fail,
			"skip", report.Skip,
			"error", report.Error,
		)
	}

	t.Status = report.Status
	t.Counts = report.Counts
	if report.Summary != nil {
		t.Summary = report.Summary
	}
	if report.Logs != nil {
		t.Logs = report.Logs
	}
	if len(report.ActualResponse) > 0 {
		t.ActualResponse = report.ActualResponse
	}
	t.UpdatedAt = now

	if err := s.saveTask(ctx, t); err != nil {
		return nil, err
	}

	slog.Info("task result reported", "task_id", t.ID, "status", t.Status, "total", t.Counts.Total)
	return t, nil
}

// FailStaleTasks marks running tasks that started more than olderThan ago as failed.
// A task that reports a result after the stale list was read keeps that result.
func (s *Service) FailStaleTasks(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now()
	cutoff := now.Add(-olderThan)
	stale, err := s.repo.ListStaleTasks(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale tasks: %w", err)
	}

	failed := 0
	for _, t := range stale {
		ok, err := s.repo.FailStaleTask(ctx, t.ID, cutoff, now)
		if err != nil {
			return failed, fmt.Errorf("failed to fail task %d: %w", t.ID, err)
		}
		if !ok {
			slog.Debug("stale task changed before it was failed", "task_id", t.ID)
			continue
		}

		slog.Warn("stale task marked failed", "task_id", t.ID, "project_id", t.ProjectID)
		failed++
	}

	return failed, nil
}

// ExportTasks returns every task row matching the query, ignoring its page
func (s *Service) ExportTasks(ctx context.Context, q models.TaskQuery) ([]models.TaskRow, error) {
	var rows []models.TaskRow
	q.Page = models.PageRequest{PageNo: 1, PageSize: models.MaxPageSize}
	for {
		page, err := s.ListTasks(ctx, q)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Items...)
		if !page.HasNext {
			return rows, nil
		}
		q.Page.PageNo++
	}
}

func (s *Service) requireProject(ctx context.Context, projectID int64) error {
	if projectID <= 0 {
		return invalid("project_id is required")
	}
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if p == nil {
		return fmt.Errorf("%w: %d", ErrProjectNotFound, projectID)
	}
	return nil
}

func (s *Service) saveTask(ctx context.Context, t *models.Task) error {
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTaskNotFound
		}
		return taskWriteError(err)
	}
	return nil
}

func taskWriteError(err error) error {
	switch {
	case errors.Is(err, storage.ErrForeignKey):
		return invalid("project or creator does not exist")
	}
	return fmt.Errorf("failed to save task: %w", err)
}

var _ Manager = (*Service)(nil)
