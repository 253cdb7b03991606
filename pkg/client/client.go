package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPrefix = "/api/v1/autotest"

// Client is a Go SDK for the autotest-engine API
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new autotest-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "autotest-engine-client",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a failed API call as reported by the server envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether the server answered 404
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ListOptions contains the filters shared by the list endpoints
type ListOptions struct {
	Name     string
	From     string
	To       string
	PageNo   int
	PageSize int
}

// TaskListOptions adds the task-only filters
type TaskListOptions struct {
	ListOptions
	ProjectID int64
	Status    TaskStatus
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Name != "" {
		v.Set("name", o.Name)
	}
	if o.From != "" || o.To != "" {
		v.Add("date_range", o.From)
		v.Add("date_range", o.To)
	}
	if o.PageNo > 0 {
		v.Set("page_no", strconv.Itoa(o.PageNo))
	}
	if o.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return v
}

type deleteResult struct {
	Deleted int64 `json:"deleted"`
}

// ListProjects retrieves one page of projects
func (c *Client) ListProjects(ctx context.Context, opts ListOptions) (*Page[ProjectRow], error) {
	var page Page[ProjectRow]
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/project/list?"+opts.values().Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetProject retrieves a project by ID
func (c *Client) GetProject(ctx context.Context, id int64) (*ProjectRow, error) {
	var row ProjectRow
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/project/detail?id="+strconv.FormatInt(id, 10), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ProjectOptions retrieves the project selector list
func (c *Client) ProjectOptions(ctx context.Context) ([]ProjectSelector, error) {
	var options []ProjectSelector
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/project/options", nil, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// CreateProject creates a new project
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*ProjectRow, error) {
	var row ProjectRow
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/project/create", req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateProject applies a partial update to a project
func (c *Client) UpdateProject(ctx context.Context, id int64, req UpdateProjectRequest) (*ProjectRow, error) {
	body := struct {
		ID int64 `json:"id"`
		UpdateProjectRequest
	}{ID: id, UpdateProjectRequest: req}

	var row ProjectRow
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/project/update", body, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteProjects removes projects and their tasks, returning how many projects were deleted
func (c *Client) DeleteProjects(ctx context.Context, ids ...int64) (int64, error) {
	var result deleteResult
	if err := c.do(ctx, http.MethodDelete, apiPrefix+"/project/delete", map[string][]int64{"ids": ids}, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}

// ListTasks retrieves one page of tasks
func (c *Client) ListTasks(ctx context.Context, opts TaskListOptions) (*Page[TaskRow], error) {
	v := opts.values()
	if opts.ProjectID > 0 {
		v.Set("project_id", strconv.FormatInt(opts.ProjectID, 10))
	}
	if opts.Status != "" {
		v.Set("status", string(opts.Status))
	}

	var page Page[TaskRow]
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/task/list?"+v.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTask retrieves a task by ID
func (c *Client) GetTask(ctx context.Context, id int64) (*TaskRow, error) {
	var row TaskRow
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/task/detail?id="+strconv.FormatInt(id, 10), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateTask creates a new pending task
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*TaskRow, error) {
	var row TaskRow
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/task/create", req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateTask applies a partial update to a task
func (c *Client) UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) (*TaskRow, error) {
	body := struct {
		ID int64 `json:"id"`
		UpdateTaskRequest
	}{ID: id, UpdateTaskRequest: req}

	var row TaskRow
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/task/update", body, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteTasks removes tasks, returning how many were deleted
func (c *Client) DeleteTasks(ctx context.Context, ids ...int64) (int64, error) {
	var result deleteResult
	if err := c.do(ctx, http.MethodDelete, apiPrefix+"/task/delete", map[string][]int64{"ids": ids}, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}

// ReportResult records an execution outcome for a task
func (c *Client) ReportResult(ctx context.Context, id int64, req ReportResultRequest) (*TaskRow, error) {
	body := struct {
		ID int64 `json:"id"`
		ReportResultRequest
	}{ID: id, ReportResultRequest: req}

	var row TaskRow
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/task/result", body, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListEnvironments retrieves one page of environments
func (c *Client) ListEnvironments(ctx context.Context, opts ListOptions) (*Page[EnvironmentRow], error) {
	var page Page[EnvironmentRow]
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/environment/list?"+opts.values().Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetEnvironment retrieves an environment by ID
func (c *Client) GetEnvironment(ctx context.Context, id int64) (*EnvironmentRow, error) {
	var row EnvironmentRow
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/environment/detail?id="+strconv.FormatInt(id, 10), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateEnvironment creates a new environment
func (c *Client) CreateEnvironment(ctx context.Context, req CreateEnvironmentRequest) (*EnvironmentRow, error) {
	var row EnvironmentRow
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/environment/create", req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateEnvironment applies a partial update to an environment
func (c *Client) UpdateEnvironment(ctx context.Context, id int64, req UpdateEnvironmentRequest) (*EnvironmentRow, error) {
	body := struct {
		ID int64 `json:"id"`
		UpdateEnvironmentRequest
	}{ID: id, UpdateEnvironmentRequest: req}

	var row EnvironmentRow
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/environment/update", body, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteEnvironments removes environments, returning how many were deleted
func (c *Client) DeleteEnvironments(ctx context.Context, ids ...int64) (int64, error) {
	var result deleteResult
	if err := c.do(ctx, http.MethodDelete, apiPrefix+"/environment/delete", map[string][]int64{"ids": ids}, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// do performs an HTTP request and decodes the response envelope's data into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(respBody))}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success || resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown_error"}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}
