package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/autotest-engine/internal/api"
	"github.com/terra-clan/autotest-engine/internal/autotest"
	"github.com/terra-clan/autotest-engine/internal/cache"
	"github.com/terra-clan/autotest-engine/internal/config"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(ctx, ""))
	t.Cleanup(func() { repo.Close() })

	srv := api.NewServer(config.ServerConfig{}, config.WatchConfig{}, autotest.NewService(repo, cache.Noop{}), nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL+"/", WithTimeout(5*time.Second))
}

func TestClient_Projects(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	created, err := c.CreateProject(ctx, CreateProjectRequest{Name: "payments", Description: "gateway"})
	require.NoError(t, err)
	require.Equal(t, "payments", *created.Name)

	_, err = c.CreateProject(ctx, CreateProjectRequest{Name: "payments"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "project_exists", apiErr.Code)

	_, err = c.CreateProject(ctx, CreateProjectRequest{Name: "mobile"})
	require.NoError(t, err)

	page, err := c.ListProjects(ctx, ListOptions{Name: "pay", From: "2000-01-01", To: "2999-01-01"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "payments", *page.Items[0].Name)

	options, err := c.ProjectOptions(ctx)
	require.NoError(t, err)
	require.Len(t, options, 2)

	desc := "card payments"
	updated, err := c.UpdateProject(ctx, *created.ID, UpdateProjectRequest{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, desc, *updated.Description)

	got, err := c.GetProject(ctx, *created.ID)
	require.NoError(t, err)
	require.Equal(t, desc, *got.Description)

	deleted, err := c.DeleteProjects(ctx, *created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = c.GetProject(ctx, *created.ID)
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.IsNotFound())
}

func TestClient_Tasks(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	project, err := c.CreateProject(ctx, CreateProjectRequest{Name: "payments"})
	require.NoError(t, err)

	task, err := c.CreateTask(ctx, CreateTaskRequest{Name: "smoke", ProjectID: *project.ID})
	require.NoError(t, err)
	require.Equal(t, "pending", *task.Status)

	reported, err := c.ReportResult(ctx, *task.ID, ReportResultRequest{
		Status:       TaskFailed,
		TotalCount:   4,
		SuccessCount: 3,
		FailCount:    1,
		Logs:         []LogEntry{{Level: "error", Message: "assertion failed"}},
	})
	require.NoError(t, err)
	require.Equal(t, "failed", *reported.Status)
	require.NotNil(t, reported.EndTime)
	require.NotNil(t, reported.Logs)
	require.Len(t, *reported.Logs, 1)
	require.Equal(t, 3, *reported.SuccessCount)

	page, err := c.ListTasks(ctx, TaskListOptions{ProjectID: *project.ID, Status: TaskFailed})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	name := "smoke suite"
	renamed, err := c.UpdateTask(ctx, *task.ID, UpdateTaskRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, *renamed.Name)

	got, err := c.GetTask(ctx, *task.ID)
	require.NoError(t, err)
	require.Equal(t, 1, *got.FailCount)

	deleted, err := c.DeleteTasks(ctx, *task.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = c.ListTasks(ctx, TaskListOptions{Status: "paused"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "validation_error", apiErr.Code)
}

func TestClient_Environments(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.CreateEnvironment(ctx, CreateEnvironmentRequest{Name: "staging", BaseURL: "https://staging.example.com"})
	require.NoError(t, err)
	require.Equal(t, "staging", *created.Name)

	url := "https://stage.example.com"
	updated, err := c.UpdateEnvironment(ctx, *created.ID, UpdateEnvironmentRequest{BaseURL: &url})
	require.NoError(t, err)
	require.Equal(t, url, *updated.BaseURL)

	page, err := c.ListEnvironments(ctx, ListOptions{Name: "stag"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	got, err := c.GetEnvironment(ctx, *created.ID)
	require.NoError(t, err)
	require.Equal(t, url, *got.BaseURL)

	deleted, err := c.DeleteEnvironments(ctx, *created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = c.GetEnvironment(ctx, *created.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "environment_not_found", apiErr.Code)
}

func TestClient_NonEnvelopeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewClient(ts.URL).Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "http_error", apiErr.Code)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}
