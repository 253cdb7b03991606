package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/terra-clan/autotest-engine/internal/models"
)

// SQLiteRepository implements Repository using an embedded SQLite database
type SQLiteRepository struct {
	db *sql.DB
	q  queries
}

// NewSQLiteRepository opens the SQLite database at dsn, e.g. "autotest.db" or ":memory:"
func NewSQLiteRepository(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteRepository{db: db, q: queries{flavor: sqlbuilder.SQLite}}, nil
}

// sqliteDSN makes timestamps round-trip in a sortable text form and
// enables foreign keys on every connection the pool opens
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_time_format=") {
		params = append(params, "_time_format=sqlite")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// DB exposes the underlying handle for migrations
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

// Ping checks database connectivity
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// CreateUser inserts a user and sets its ID
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *models.User) error {
	query, args := r.q.insertUser(u)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID); err != nil {
		return fmt.Errorf("failed to create user: %w", sqliteError(err))
	}
	return nil
}

// GetUserByUsername retrieves a user by username
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query, args := r.q.selectUserByUsername(username)
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// CreateProject inserts a project and sets its ID
func (r *SQLiteRepository) CreateProject(ctx context.Context, p *models.Project) error {
	query, args := r.q.insertProject(p)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create project: %w", sqliteError(err))
	}
	return nil
}

// GetProject retrieves a project by ID
func (r *SQLiteRepository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	query, args := r.q.selectProject(id)
	return r.getProject(ctx, query, args)
}

// GetProjectByName retrieves a project by its exact name
func (r *SQLiteRepository) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	query, args := r.q.selectProjectByName(name)
	return r.getProject(ctx, query, args)
}

func (r *SQLiteRepository) getProject(ctx context.Context, query string, args []interface{}) (*models.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// UpdateProject updates a project's name and description
func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *models.Project) error {
	query, args := r.q.updateProject(p)
	return r.execOne(ctx, query, args, fmt.Sprintf("project %d", p.ID))
}

// DeleteProjects deletes projects by ID. Their tasks are removed by cascade.
func (r *SQLiteRepository) DeleteProjects(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := r.q.deleteByIDs(projectsTable, ids)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete projects: %w", err)
	}
	return result.RowsAffected()
}

// ListProjects returns one page of projects and the total match count
func (r *SQLiteRepository) ListProjects(ctx context.Context, filters models.ProjectFilter) ([]*models.Project, int, error) {
	list, listArgs, count, countArgs := r.q.listProjects(filters)

	var total int
	if err := r.db.QueryRowContext(ctx, count, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, list, listArgs...)
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
func (r *SQLiteRepository) ListProjectOptions(ctx context.Context) ([]*models.Project, error) {
	query, args := r.q.listProjectOptions()
	rows, err := r.db.QueryContext(ctx, query, args...)
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
func (r *SQLiteRepository) CreateEnvironment(ctx context.Context, e *models.Environment) error {
	query, args := r.q.insertEnvironment(e)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("failed to create environment: %w", sqliteError(err))
	}
	return nil
}

// GetEnvironment retrieves an environment by ID
func (r *SQLiteRepository) GetEnvironment(ctx context.Context, id int64) (*models.Environment, error) {
	query, args := r.q.selectEnvironment(id)
	return r.getEnvironment(ctx, query, args)
}

// GetEnvironmentByName retrieves an environment by its exact name
func (r *SQLiteRepository) GetEnvironmentByName(ctx context.Context, name string) (*models.Environment, error) {
	query, args := r.q.selectEnvironmentByName(name)
	return r.getEnvironment(ctx, query, args)
}

func (r *SQLiteRepository) getEnvironment(ctx context.Context, query string, args []interface{}) (*models.Environment, error) {
	e, err := scanEnvironment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	return e, nil
}

// UpdateEnvironment updates an environment's editable fields
func (r *SQLiteRepository) UpdateEnvironment(ctx context.Context, e *models.Environment) error {
	query, args := r.q.updateEnvironment(e)
	return r.execOne(ctx, query, args, fmt.Sprintf("environment %d", e.ID))
}

// DeleteEnvironments deletes environments by ID
func (r *SQLiteRepository) DeleteEnvironments(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := r.q.deleteByIDs(environmentsTable, ids)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete environments: %w", err)
	}
	return result.RowsAffected()
}

// ListEnvironments returns one page of environments and the total match count
func (r *SQLiteRepository) ListEnvironments(ctx context.Context, filters models.EnvironmentFilter) ([]*models.Environment, int, error) {
	list, listArgs, count, countArgs := r.q.listEnvironments(filters)

	var total int
	if err := r.db.QueryRowContext(ctx, count, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count environments: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, list, listArgs...)
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
func (r *SQLiteRepository) CreateTask(ctx context.Context, t *models.Task) error {
	query, args, err := r.q.insertTask(t)
	if err != nil {
		return err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create task: %w", sqliteError(err))
	}
	return nil
}

// GetTask retrieves a task by ID
func (r *SQLiteRepository) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query, args := r.q.selectTask(id)
	t, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes every mutable column of a task
func (r *SQLiteRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	query, args, err := r.q.updateTask(t)
	if err != nil {
		return err
	}
	return r.execOne(ctx, query, args, fmt.Sprintf("task %d", t.ID))
}

// DeleteTasks deletes tasks by ID
func (r *SQLiteRepository) DeleteTasks(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := r.q.deleteByIDs(tasksTable, ids)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return result.RowsAffected()
}

// ListTasks returns one page of tasks and the total match count
func (r *SQLiteRepository) ListTasks(ctx context.Context, filters models.TaskFilter) ([]*models.Task, int, error) {
	list, listArgs, count, countArgs := r.q.listTasks(filters)

	var total int
	if err := r.db.QueryRowContext(ctx, count, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks, err := r.queryTasks(ctx, list, listArgs)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListStaleTasks returns running tasks that started before the cutoff
func (r *SQLiteRepository) ListStaleTasks(ctx context.Context, startedBefore time.Time) ([]*models.Task, error) {
	query, args := r.q.listStaleTasks(startedBefore.UTC())
	return r.queryTasks(ctx, query, args)
}

// FailStaleTask marks a stale running task failed
func (r *SQLiteRepository) FailStaleTask(ctx context.Context, id int64, startedBefore, end time.Time) (bool, error) {
	query, args := r.q.failStaleTask(id, startedBefore.UTC(), end.UTC())
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to fail task %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) queryTasks(ctx context.Context, query string, args []interface{}) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *SQLiteRepository) execOne(ctx context.Context, query string, args []interface{}, what string) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, sqliteError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// sqliteError maps constraint violations onto storage errors
func sqliteError(err error) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	msg := sqlErr.Error()
	switch code := sqlErr.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", ErrForeignKey, msg)
	}
	return err
}

var _ Repository = (*SQLiteRepository)(nil)
