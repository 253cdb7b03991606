package storage

import (
	"context"
	"time"

	"github.com/terra-clan/autotest-engine/internal/models"
)

// Repository defines the interface for autotest persistence.
// Get methods return (nil, nil) when the record does not exist.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProjects(ctx context.Context, ids []int64) (int64, error)
	ListProjects(ctx context.Context, filters models.ProjectFilter) ([]*models.Project, int, error)
	ListProjectOptions(ctx context.Context) ([]*models.Project, error)

	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTasks(ctx context.Context, ids []int64) (int64, error)
	ListTasks(ctx context.Context, filters models.TaskFilter) ([]*models.Task, int, error)
	ListStaleTasks(ctx context.Context, startedBefore time.Time) ([]*models.Task, error)
	// FailStaleTask reports false when the task is no longer running and stale
	FailStaleTask(ctx context.Context, id int64, startedBefore, end time.Time) (bool, error)

	// Environments
	CreateEnvironment(ctx context.Context, e *models.Environment) error
	GetEnvironment(ctx context.Context, id int64) (*models.Environment, error)
	GetEnvironmentByName(ctx context.Context, name string) (*models.Environment, error)
	UpdateEnvironment(ctx context.Context, e *models.Environment) error
	DeleteEnvironments(ctx context.Context, ids []int64) (int64, error)
	ListEnvironments(ctx context.Context, filters models.EnvironmentFilter) ([]*models.Environment, int, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
