package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/autotest-engine/internal/cache"
	"github.com/terra-clan/autotest-engine/internal/models"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

// Stats counts what a load created and skipped
type Stats struct {
	Users        int
	Projects     int
	Environments int
	Tasks        int
	Skipped      int
}

// Loader loads fixture users, projects, environments and tasks from YAML files into storage
type Loader struct {
	repo    storage.Repository
	options cache.ProjectOptions
	now     func() time.Time
}

// NewLoader creates a new fixture loader. Loads that create projects
// invalidate options; a nil cache is treated as disabled.
func NewLoader(repo storage.Repository, options cache.ProjectOptions) *Loader {
	if options == nil {
		options = cache.Noop{}
	}
	return &Loader{
		repo:    repo,
		options: options,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// LoadFromDir loads every *.yaml and *.yml file in dir.
// Files are merged before anything is written, so entries may reference
// users and projects declared in other files.
func (l *Loader) LoadFromDir(ctx context.Context, dir string) (Stats, error) {
	slog.Info("loading seed fixtures from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return Stats{}, fmt.Errorf("failed to read seed dir: %w", err)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	var merged fixtureFile
	parsed := 0
	for _, file := range files {
		f, err := readFixture(file)
		if err != nil {
			slog.Warn("failed to read seed file", "file", file, "error", err)
			continue
		}
		merged.Users = append(merged.Users, f.Users...)
		merged.Projects = append(merged.Projects, f.Projects...)
		merged.Environments = append(merged.Environments, f.Environments...)
		merged.Tasks = append(merged.Tasks, f.Tasks...)
		parsed++
	}

	stats, err := l.apply(ctx, merged)
	if err != nil {
		return stats, err
	}

	slog.Info("seed fixtures loaded",
		"files", parsed,
		"total_files", len(files),
		"users", stats.Users,
		"projects", stats.Projects,
		"environments", stats.Environments,
		"tasks", stats.Tasks,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// LoadFromFile loads a single fixture file
func (l *Loader) LoadFromFile(ctx context.Context, path string) (Stats, error) {
	f, err := readFixture(path)
	if err != nil {
		return Stats{}, err
	}
	return l.apply(ctx, f)
}

func readFixture(path string) (fixtureFile, error) {
	var f fixtureFile

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f, nil
}

// apply writes users, then projects and environments, then tasks.
// Bad entries are logged and skipped; only storage failures abort the load.
func (l *Loader) apply(ctx context.Context, f fixtureFile) (Stats, error) {
	var stats Stats
	defer func() {
		if stats.Projects == 0 {
			return
		}
		if err := l.options.Invalidate(ctx); err != nil {
			slog.Warn("project options cache invalidation failed", "error", err)
		}
	}()
	users := make(map[string]int64)

	for _, uf := range f.Users {
		id, created, err := l.ensureUser(ctx, uf)
		if err != nil {
			return stats, err
		}
		if id == 0 {
			stats.Skipped++
			continue
		}
		users[uf.Username] = id
		if created {
			stats.Users++
		} else {
			stats.Skipped++
		}
	}

	for _, pf := range f.Projects {
		created, err := l.ensureProject(ctx, pf, users)
		if err != nil {
			return stats, err
		}
		if created {
			stats.Projects++
		} else {
			stats.Skipped++
		}
	}

	for _, ef := range f.Environments {
		created, err := l.ensureEnvironment(ctx, ef, users)
		if err != nil {
			return stats, err
		}
		if created {
			stats.Environments++
		} else {
			stats.Skipped++
		}
	}

	for _, tf := range f.Tasks {
		created, err := l.ensureTask(ctx, tf, users)
		if err != nil {
			return stats, err
		}
		if created {
			stats.Tasks++
		} else {
			stats.Skipped++
		}
	}

	return stats, nil
}

func (l *Loader) ensureUser(ctx context.Context, uf userFile) (int64, bool, error) {
	uf.Username = strings.TrimSpace(uf.Username)
	if uf.Username == "" {
		slog.Warn("skipping seed user without username", "name", uf.Name)
		return 0, false, nil
	}

	existing, err := l.repo.GetUserByUsername(ctx, uf.Username)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up user %q: %w", uf.Username, err)
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	u := &models.User{
		Name:      strings.TrimSpace(uf.Name),
		Username:  uf.Username,
		CreatedAt: l.now(),
	}
	if err := l.repo.CreateUser(ctx, u); err != nil {
		return 0, false, fmt.Errorf("failed to create user %q: %w", uf.Username, err)
	}

	slog.Debug("seed user created", "username", u.Username, "id", u.ID)
	return u.ID, true, nil
}

func (l *Loader) ensureProject(ctx context.Context, pf projectFile, users map[string]int64) (bool, error) {
	name := strings.TrimSpace(pf.Name)
	if name == "" {
		slog.Warn("skipping seed project without name")
		return false, nil
	}

	existing, err := l.repo.GetProjectByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to look up project %q: %w", name, err)
	}
	if existing != nil {
		return false, nil
	}

	now := l.now()
	p := &models.Project{
		Name:        name,
		Description: strings.TrimSpace(pf.Description),
		CreatorID:   l.creatorID(ctx, pf.Creator, users),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.repo.CreateProject(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create project %q: %w", name, err)
	}

	slog.Debug("seed project created", "name", p.Name, "id", p.ID)
	return true, nil
}

func (l *Loader) ensureEnvironment(ctx context.Context, ef environmentFile, users map[string]int64) (bool, error) {
	name := strings.TrimSpace(ef.Name)
	if name == "" {
		slog.Warn("skipping seed environment without name")
		return false, nil
	}

	existing, err := l.repo.GetEnvironmentByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to look up environment %q: %w", name, err)
	}
	if existing != nil {
		return false, nil
	}

	now := l.now()
	e := &models.Environment{
		Name:        name,
		BaseURL:     strings.TrimSpace(ef.BaseURL),
		Description: strings.TrimSpace(ef.Description),
		CreatorID:   l.creatorID(ctx, ef.Creator, users),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.repo.CreateEnvironment(ctx, e); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create environment %q: %w", name, err)
	}

	slog.Debug("seed environment created", "name", e.Name, "id", e.ID)
	return true, nil
}

func (l *Loader) ensureTask(ctx context.Context, tf taskFile, users map[string]int64) (bool, error) {
	name := strings.TrimSpace(tf.Name)
	if name == "" {
		slog.Warn("skipping seed task without name", "project", tf.Project)
		return false, nil
	}

	status := models.TaskPending
	if tf.Status != "" {
		parsed, err := models.ParseTaskStatus(tf.Status)
		if err != nil {
			slog.Warn("skipping seed task", "name", name, "error", err)
			return false, nil
		}
		status = parsed
	}

	project, err := l.repo.GetProjectByName(ctx, strings.TrimSpace(tf.Project))
	if err != nil {
		return false, fmt.Errorf("failed to look up project %q: %w", tf.Project, err)
	}
	if project == nil {
		slog.Warn("skipping seed task with unknown project", "name", name, "project", tf.Project)
		return false, nil
	}

	exists, err := l.taskExists(ctx, project.ID, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := l.now()
	t := &models.Task{
		Name:        name,
		ProjectID:   project.ID,
		Description: strings.TrimSpace(tf.Description),
		Status:      status,
		CreatorID:   l.creatorID(ctx, tf.Creator, users),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status != models.TaskPending {
		t.StartTime = &now
	}
	if status.IsTerminal() {
		t.EndTime = &now
	}

	if err := l.repo.CreateTask(ctx, t); err != nil {
		return false, fmt.Errorf("failed to create task %q: %w", name, err)
	}

	slog.Debug("seed task created", "name", t.Name, "id", t.ID, "project_id", project.ID)
	return true, nil
}

// taskExists reports whether the project already has a task with exactly this name
func (l *Loader) taskExists(ctx context.Context, projectID int64, name string) (bool, error) {
	filter := models.TaskFilter{
		NameLike:  name,
		ProjectID: &projectID,
		Limit:     models.MaxPageSize,
	}
	for {
		tasks, total, err := l.repo.ListTasks(ctx, filter)
		if err != nil {
			return false, fmt.Errorf("failed to list tasks of project %d: %w", projectID, err)
		}
		for _, t := range tasks {
			if t.Name == name {
				return true, nil
			}
		}
		filter.Offset += len(tasks)
		if len(tasks) == 0 || filter.Offset >= total {
			return false, nil
		}
	}
}

func (l *Loader) creatorID(ctx context.Context, username string, users map[string]int64) *int64 {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}
	if id, ok := users[username]; ok {
		return &id
	}

	u, err := l.repo.GetUserByUsername(ctx, username)
	if err != nil || u == nil {
		slog.Warn("seed creator not found", "username", username, "error", err)
		return nil
	}
	users[username] = u.ID
	return &u.ID
}

// --- YAML file structs ---

// fixtureFile represents the YAML structure of a seed file
type fixtureFile struct {
	Users        []userFile        `yaml:"users"`
	Projects     []projectFile     `yaml:"projects"`
	Environments []environmentFile `yaml:"environments"`
	Tasks        []taskFile        `yaml:"tasks"`
}

type userFile struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
}

type projectFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Creator     string `yaml:"creator"`
}

type environmentFile struct {
	Name        string `yaml:"name"`
	BaseURL     string `yaml:"base_url"`
	Description string `yaml:"description"`
	Creator     string `yaml:"creator"`
}

type taskFile struct {
	Name        string `yaml:"name"`
	Project     string `yaml:"project"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Creator     string `yaml:"creator"`
}
