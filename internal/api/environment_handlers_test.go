package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/autotest-engine/internal/models"
)

func TestServer_EnvironmentEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec, env := doRequest(t, srv, http.MethodPost, "/api/v1/autotest/environment/create",
		models.EnvironmentCreate{Name: "staging", BaseURL: "https://staging.example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.EnvironmentRow
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, "staging", *created.Name)
	require.Equal(t, "https://staging.example.com", *created.BaseURL)

	rec, env = doRequest(t, srv, http.MethodPost, "/api/v1/autotest/environment/create", models.EnvironmentCreate{Name: "staging"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "environment_exists", env.Error.Code)

	rec, env = doRequest(t, srv, http.MethodPost, "/api/v1/autotest/environment/create",
		models.EnvironmentCreate{Name: "qa", BaseURL: "qa.internal"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", env.Error.Code)

	rec, env = doRequest(t, srv, http.MethodGet, "/api/v1/autotest/environment/list?name=STAG", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.Page[models.EnvironmentRow]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, 1, page.Total)

	desc := "shared staging"
	rec, env = doRequest(t, srv, http.MethodPut, "/api/v1/autotest/environment/update",
		map[string]interface{}{"id": *created.ID, "description": desc})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.EnvironmentRow
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, desc, *updated.Description)
	assert.Equal(t, "https://staging.example.com", *updated.BaseURL)

	rec, env = doRequest(t, srv, http.MethodGet, "/api/v1/autotest/environment/detail?id="+strconv.FormatInt(*created.ID, 10), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doRequest(t, srv, http.MethodDelete, "/api/v1/autotest/environment/delete", deleteRequest{IDs: []int64{*created.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, string(env.Data))

	rec, env = doRequest(t, srv, http.MethodGet, "/api/v1/autotest/environment/detail?id="+strconv.FormatInt(*created.ID, 10), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "environment_not_found", env.Error.Code)
}
