package autotest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/terra-clan/autotest-engine/internal/cache"
	"github.com/terra-clan/autotest-engine/internal/models"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

const maxNameLength = 255

// Manager defines the interface for autotest project and task management
type Manager interface {
	// Projects
	ListProjects(ctx context.Context, q models.ProjectQuery) (models.Page[models.ProjectRow], error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	CreateProject(ctx context.Context, in models.ProjectCreate) (*models.Project, error)
	UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (*models.Project, error)
	DeleteProjects(ctx context.Context, ids []int64) (int64, error)
	ProjectOptions(ctx context.Context) ([]models.ProjectSelector, error)
	ExportProjects(ctx context.Context, criteria models.SearchCriteria) ([]models.ProjectRow, error)

	// Tasks
	ListTasks(ctx context.Context, q models.TaskQuery) (models.Page[models.TaskRow], error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	CreateTask(ctx context.Context, in models.TaskCreate) (*models.Task, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	DeleteTasks(ctx context.Context, ids []int64) (int64, error)
	ReportResult(ctx context.Context, id int64, report models.ResultReport) (*models.Task, error)
	FailStaleTasks(ctx context.Context, olderThan time.Duration) (int, error)
	ExportTasks(ctx context.Context, q models.TaskQuery) ([]models.TaskRow, error)

	// Environments
	ListEnvironments(ctx context.Context, q models.EnvironmentQuery) (models.Page[models.EnvironmentRow], error)
	GetEnvironment(ctx context.Context, id int64) (*models.Environment, error)
	CreateEnvironment(ctx context.Context, in models.EnvironmentCreate) (*models.Environment, error)
	UpdateEnvironment(ctx context.Context, id int64, patch models.EnvironmentPatch) (*models.Environment, error)
	DeleteEnvironments(ctx context.Context, ids []int64) (int64, error)

	Ping(ctx context.Context) error
}

// Service implements Manager on top of a storage.Repository
type Service struct {
	repo    storage.Repository
	options cache.ProjectOptions
	now     func() time.Time
}

// NewService creates a new Service. A nil options cache disables caching.
func NewService(repo storage.Repository, options cache.ProjectOptions) *Service {
	if options == nil {
		options = cache.Noop{}
	}
	return &Service{
		repo:    repo,
		options: options,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Ping checks storage connectivity
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateName(name string) error {
	if name == "" {
		return invalid("name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return invalid("name must be at most %d characters", maxNameLength)
	}
	return nil
}

func validateIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, invalid("ids must not be empty")
	}
	seen := make(map[int64]bool, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, invalid("id %d is not valid", id)
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique, nil
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// ListProjects returns one page of project rows matching the query
func (s *Service) ListProjects(ctx context.Context, q models.ProjectQuery) (models.Page[models.ProjectRow], error) {
	filters, err := q.Filter()
	if err != nil {
		return models.Page[models.ProjectRow]{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	projects, total, err := s.repo.ListProjects(ctx, filters)
	if err != nil {
		return models.Page[models.ProjectRow]{}, fmt.Errorf("failed to list projects: %w", err)
	}

	rows := make([]models.ProjectRow, len(projects))
	for i, p := range projects {
		rows[i] = p.Row(filters.Offset + i + 1)
	}
	return models.NewPage(q.Page, total, rows), nil
}

// GetProject returns a project by ID
func (s *Service) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// CreateProject validates and stores a new project
func (s *Service) CreateProject(ctx context.Context, in models.ProjectCreate) (*models.Project, error) {
	in.Normalize()
	if err := validateName(in.Name); err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Project{
		Name:        in.Name,
		Description: in.Description,
		CreatorID:   in.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, projectWriteError(p.Name, err)
	}

	slog.Info("project created", "project_id", p.ID, "name", p.Name)
	s.invalidateOptions(ctx)

	// Reload to pick up the joined creator
	return s.GetProject(ctx, p.ID)
}

// UpdateProject applies a partial update to a project
func (s *Service) UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (*models.Project, error) {
	if patch.IsEmpty() {
		return nil, invalid("nothing to update")
	}

	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(p)
	if err := validateName(p.Name); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.repo.UpdateProject(ctx, p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, projectWriteError(p.Name, err)
	}

	slog.Info("project updated", "project_id", p.ID)
	s.invalidateOptions(ctx)
	return p, nil
}

// DeleteProjects deletes projects and their tasks
func (s *Service) DeleteProjects(ctx context.Context, ids []int64) (int64, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.DeleteProjects(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete projects: %w", err)
	}
	if n == 0 {
		return 0, ErrProjectNotFound
	}

	slog.Info("projects deleted", "requested", len(ids), "deleted", n)
	s.invalidateOptions(ctx)
	return n, nil
}

// ProjectOptions returns the selector list of every project, served from cache when possible
func (s *Service) ProjectOptions(ctx context.Context) ([]models.ProjectSelector, error) {
	cached, generation, ok, err := s.options.Get(ctx)
	cacheable := err == nil
	if err != nil {
		slog.Warn("project options cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	projects, err := s.repo.ListProjectOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list project options: %w", err)
	}

	options := make([]models.ProjectSelector, len(projects))
	for i, p := range projects {
		options[i] = p.Selector()
	}

	if !cacheable {
		return options, nil
	}
	if err := s.options.Set(ctx, generation, options); err != nil {
		slog.Warn("project options cache write failed", "error", err)
	}
	return options, nil
}

// ExportProjects returns every project row matching the criteria
func (s *Service) ExportProjects(ctx context.Context, criteria models.SearchCriteria) ([]models.ProjectRow, error) {
	var rows []models.ProjectRow
	for pageNo := 1; ; pageNo++ {
		page, err := s.ListProjects(ctx, models.ProjectQuery{
			Criteria: criteria,
			Page:     models.PageRequest{PageNo: pageNo, PageSize: models.MaxPageSize},
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Items...)
		if !page.HasNext {
			return rows, nil
		}
	}
}

func (s *Service) invalidateOptions(ctx context.Context) {
	if err := s.options.Invalidate(ctx); err != nil {
		slog.Warn("project options cache invalidation failed", "error", err)
	}
}

func projectWriteError(name string, err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %q", ErrProjectExists, name)
	case errors.Is(err, storage.ErrForeignKey):
		return invalid("creator does not exist")
	}
	return fmt.Errorf("failed to save project: %w", err)
}
