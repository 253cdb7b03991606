package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/terra-clan/autotest-engine/internal/models"
)

// Repository is a mock for storage.Repository.
type Repository struct {
	mock.Mock
}

func (m *Repository) CreateUser(ctx context.Context, u *models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) CreateProject(ctx context.Context, p *models.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *Repository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	args := m.Called(ctx, name)
	if p, ok := args.Get(0).(*models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) UpdateProject(ctx context.Context, p *models.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *Repository) DeleteProjects(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Repository) ListProjects(ctx context.Context, filters models.ProjectFilter) ([]*models.Project, int, error) {
	args := m.Called(ctx, filters)
	if list, ok := args.Get(0).([]*models.Project); ok {
		return list, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *Repository) ListProjectOptions(ctx context.Context) ([]*models.Project, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]*models.Project); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) CreateTask(ctx context.Context, t *models.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *Repository) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*models.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) UpdateTask(ctx context.Context, t *models.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *Repository) DeleteTasks(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Repository) ListTasks(ctx context.Context, filters models.TaskFilter) ([]*models.Task, int, error) {
	args := m.Called(ctx, filters)
	if list, ok := args.Get(0).([]*models.Task); ok {
		return list, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *Repository) ListStaleTasks(ctx context.Context, startedBefore time.Time) ([]*models.Task, error) {
	args := m.Called(ctx, startedBefore)
	if list, ok := args.Get(0).([]*models.Task); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) FailStaleTask(ctx context.Context, id int64, startedBefore, end time.Time) (bool, error) {
	args := m.Called(ctx, id, startedBefore, end)
	return args.Bool(0), args.Error(1)
}

func (m *Repository) CreateEnvironment(ctx context.Context, e *models.Environment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *Repository) GetEnvironment(ctx context.Context, id int64) (*models.Environment, error) {
	args := m.Called(ctx, id)
	if e, ok := args.Get(0).(*models.Environment); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) GetEnvironmentByName(ctx context.Context, name string) (*models.Environment, error) {
	args := m.Called(ctx, name)
	if e, ok := args.Get(0).(*models.Environment); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) UpdateEnvironment(ctx context.Context, e *models.Environment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *Repository) DeleteEnvironments(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Repository) ListEnvironments(ctx context.Context, filters models.EnvironmentFilter) ([]*models.Environment, int, error) {
	args := m.Called(ctx, filters)
	if list, ok := args.Get(0).([]*models.Environment); ok {
		return list, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *Repository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Repository) Close() error {
	args := m.Called()
	return args.Error(0)
}
