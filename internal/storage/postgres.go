package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/autotest-engine/internal/models"
)

// PostgreSQL error codes mapped to storage errors
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
	q    queries
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool, q: queries{flavor: sqlbuilder.PostgreSQL}}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser inserts a user and sets its ID
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	query, args := r.q.insertUser(u)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&u.ID); err != nil {
		return fmt.Errorf("failed to create user: %w", pgError(err))
	}
	return nil
}

// GetUserByUsername retrieves a user by username
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query, args := r.q.selectUserByUsername(username)
	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// CreateProject inserts a project and sets its ID
func (r *PostgresRepository) CreateProject(ctx context.Context, p *models.Project) error {
	query, args := r.q.insertProject(p)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create project: %w", pgError(err))
	}
	return nil
}

// GetProject retrieves a project by ID
func (r *PostgresRepository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	query, args := r.q.selectProject(id)
	return r.getProject(ctx, query, args)
}

// GetProjectByName retrieves a project by its exact name
func (r *PostgresRepository) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	query, args := r.q.selectProjectByName(name)
	return r.getProject(ctx, query, args)
}

func (r *PostgresRepository) getProject(ctx context.Context, query string, args []interface{}) (*models.Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// UpdateProject updates a project's name and description
func (r *PostgresRepository) UpdateProject(ctx context.Context, p *models.Project) error {
	query, args := r.q.updateProject(p)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", pgError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

// DeleteProjects deletes projects by ID. Their tasks are removed by cascade.
func (r *PostgresRepository) DeleteProjects(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := r.q.deleteByIDs(projectsTable, ids)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete projects: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListProjects returns one page of projects and the total match count
func (r *PostgresRepository) ListProjects(ctx context.Context, filters models.ProjectFilter) ([]*models.Project, int, error) {
	list, listArgs, count, countArgs := r.q.listProjects(filters)

	var total int
	if err := r.pool.QueryRow(ctx, count, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	rows, err := r.pool.Query(ctx, list, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, total, rows.Err()
}

// ListProjectOptions returns every project's id, name and description ordered by name
func (r *PostgresRepository) ListProjectOptions(ctx context.Context) ([]*models.Project, error) {
	query, args := r.q.listProjectOptions()
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list project options: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProjectOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project option: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// CreateEnvironment inserts an environment and sets its ID
func (r *PostgresRepository) CreateEnvironment(ctx context.Context, e *models.Environment) error {
	query, args := r.q.insertEnvironment(e)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("failed to create environment: %w", pgError(err))
	}
	return nil
}

// GetEnvironment retrieves an environment by ID
func (r *PostgresRepository) GetEnvironment(ctx context.Context, id int64) (*models.Environment, error) {
	query, args := r.q.selectEnvironment(id)
	return r.getEnvironment(ctx, query, args)
}

// GetEnvironmentByName retrieves an environment by its exact name
func (r *PostgresRepository) GetEnvironmentByName(ctx context.Context, name string) (*models.Environment, error) {
	query, args := r.q.selectEnvironmentByName(name)
	return r.getEnvironment(ctx, query, args)
}

func (r *PostgresRepository) getEnvironment(ctx context.Context, query string, args []interface{}) (*models.Environment, error) {
	e, err := scanEnvironment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	return e, nil
}

// UpdateEnvironment updates an environment's editable fields
func (r *PostgresRepository) UpdateEnvironment(ctx context.Context, e *models.Environment) error {
	query, args := r.q.updateEnvironment(e)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update environment: %w", pgError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("environment %d: %w", e.ID, ErrNotFound)
	}
	return nil
}

// DeleteEnvironments deletes environments by ID
func (r *PostgresRepository) DeleteEnvironments(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := r.q.deleteByIDs(environmentsTable, ids)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete environments: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListEnvironments returns one page of environments and the total match count
func (r *PostgresRepository) ListEnvironments(ctx context.Context, filters models.EnvironmentFilter) ([]*models.Environment, int, error) {
	list, listArgs, count, countArgs := r.q.listEnvironments(filters)

	var total int
	if err := r.pool.QueryRow(ctx, count, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count environments: %w", err)
	}

	rows, err := r.pool.Query(ctx, list, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	var envs []*models.Environment
	for rows.Next() {
		e, err := scanEnvironment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan environment: %w", err)
		}
		envs = append(envs, e)
	}

	return envs, total, rows.Err()
}

// CreateTask inserts a task and sets its ID
func (r *PostgresRepository) CreateTask(ctx context.Context, t *models.Task) error {
	query, args, err := r.q.insertTask(t)
	if err != nil {
		return err
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create task: %w", pgError(err))
	}
	return nil
}

// GetTask retrieves a task by ID
func (r *PostgresRepository) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query, args := r.q.selectTask(id)
	t, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes every mutable column of a task
func (r *PostgresRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	query, args, err := r.q.updateTask(t)
	if err != nil {
		return err
	}
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", pgError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %d: %w", t.ID, ErrNotFound)
	}
	return nil
}

// DeleteTasks deletes tasks by ID
func (r *PostgresRepository) DeleteTasks(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := r.q.deleteByIDs(tasksTable, ids)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListTasks returns one page of tasks and the total match count
func (r *PostgresRepository) ListTasks(ctx context.Context, filters models.TaskFilter) ([]*models.Task, int, error) {
	list, listArgs, count, countArgs := r.q.listTasks(filters)

	var total int
	if err := r.pool.QueryRow(ctx, count, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks, err := r.queryTasks(ctx, list, listArgs)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListStaleTasks returns running tasks that started before the cutoff
func (r *PostgresRepository) ListStaleTasks(ctx context.Context, startedBefore time.Time) ([]*models.Task, error) {
	query, args := r.q.listStaleTasks(startedBefore.UTC())
	return r.queryTasks(ctx, query, args)
}

// FailStaleTask marks a stale running task failed
func (r *PostgresRepository) FailStaleTask(ctx context.Context, id int64, startedBefore, end time.Time) (bool, error) {
	query, args := r.q.failStaleTask(id, startedBefore.UTC(), end.UTC())
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to fail task %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *PostgresRepository) queryTasks(ctx context.Context, query string, args []interface{}) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// pgError maps constraint violations onto storage errors
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrForeignKey, pgErr.ConstraintName)
	}
	return err
}

var _ Repository = (*PostgresRepository)(nil)
