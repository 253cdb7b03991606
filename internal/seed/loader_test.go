package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/autotest-engine/internal/cache"
	"github.com/terra-clan/autotest-engine/internal/models"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

const usersFixture = `
users:
  - name: Admin
    username: admin
  - name: Nobody
`

const catalogFixture = `
projects:
  - name: payments
    description: payment gateway suites
    creator: admin
  - name: mobile
    creator: ghost
environments:
  - name: staging
    base_url: https://staging.example.com
    creator: admin
  - base_url: https://nameless.example.com
tasks:
  - name: smoke
    project: payments
    creator: admin
  - name: nightly
    project: payments
    status: Completed
  - name: orphan
    project: missing
  - name: paused
    project: payments
    status: paused
`

// countingOptions records invalidations of the project options cache
type countingOptions struct {
	cache.Noop
	invalidated int
}

func (c *countingOptions) Invalidate(context.Context) error {
	c.invalidated++
	return nil
}

func newTestLoader(t *testing.T) (*Loader, *storage.SQLiteRepository, *countingOptions) {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(ctx, ""))
	t.Cleanup(func() { repo.Close() })

	options := &countingOptions{}
	return NewLoader(repo, options), repo, options
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFromDir(t *testing.T) {
	loader, repo, options := newTestLoader(t)
	ctx := context.Background()

	dir := t.TempDir()
	// Projects reference a user declared in a file that sorts later
	writeFile(t, dir, "a-catalog.yaml", catalogFixture)
	writeFile(t, dir, "z-users.yml", usersFixture)
	writeFile(t, dir, "broken.yaml", "projects: [")
	writeFile(t, dir, "notes.txt", "ignored")

	stats, err := loader.LoadFromDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 2, stats.Projects)
	assert.Equal(t, 1, stats.Environments)
	assert.Equal(t, 2, stats.Tasks)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, 1, options.invalidated)

	staging, err := repo.GetEnvironmentByName(ctx, "staging")
	require.NoError(t, err)
	require.NotNil(t, staging)
	assert.Equal(t, "https://staging.example.com", staging.BaseURL)
	require.NotNil(t, staging.Creator)
	assert.Equal(t, "admin", staging.Creator.Username)

	payments, err := repo.GetProjectByName(ctx, "payments")
	require.NoError(t, err)
	require.NotNil(t, payments)
	require.NotNil(t, payments.Creator)
	assert.Equal(t, "admin", payments.Creator.Username)

	mobile, err := repo.GetProjectByName(ctx, "mobile")
	require.NoError(t, err)
	assert.Nil(t, mobile.CreatorID)

	tasks, total, err := repo.ListTasks(ctx, models.TaskFilter{ProjectID: &payments.ID, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	byName := make(map[string]*models.Task)
	for _, task := range tasks {
		byName[task.Name] = task
	}
	require.Contains(t, byName, "nightly")
	assert.Equal(t, models.TaskCompleted, byName["nightly"].Status)
	assert.NotNil(t, byName["nightly"].EndTime)
	assert.Equal(t, models.TaskPending, byName["smoke"].Status)
	assert.Nil(t, byName["smoke"].StartTime)
}

func TestLoadFromDir_SkipsExisting(t *testing.T) {
	loader, repo, options := newTestLoader(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "users.yaml", usersFixture)
	writeFile(t, dir, "catalog.yaml", catalogFixture)

	_, err := loader.LoadFromDir(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 1, options.invalidated)

	stats, err := loader.LoadFromDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 10}, stats)
	assert.Equal(t, 1, options.invalidated, "nothing new to show")

	_, total, err := repo.ListProjects(ctx, models.ProjectFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestLoadFromDir_MissingDir(t *testing.T) {
	loader, _, _ := newTestLoader(t)

	_, err := loader.LoadFromDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	loader, _, options := newTestLoader(t)
	dir := t.TempDir()

	writeFile(t, dir, "users.yaml", usersFixture)
	stats, err := loader.LoadFromFile(context.Background(), filepath.Join(dir, "users.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 1, Skipped: 1}, stats)
	assert.Zero(t, options.invalidated)

	writeFile(t, dir, "bad.yaml", "users: {")
	_, err = loader.LoadFromFile(context.Background(), filepath.Join(dir, "bad.yaml"))
	require.Error(t, err)
}
