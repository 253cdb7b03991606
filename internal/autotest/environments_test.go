package autotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/autotest-engine/internal/models"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

func TestCreateEnvironment_Validation(t *testing.T) {
	svc, repo, _ := newMockService()
	ctx := context.Background()

	_, err := svc.CreateEnvironment(ctx, models.EnvironmentCreate{Name: " "})
	require.ErrorIs(t, err, ErrInvalidInput)

	for _, raw := range []string{"staging.example.com", "ftp://files.example.com", "https://"} {
		_, err = svc.CreateEnvironment(ctx, models.EnvironmentCreate{Name: "staging", BaseURL: raw})
		require.ErrorIs(t, err, ErrInvalidInput, raw)
	}
	repo.AssertNotCalled(t, "CreateEnvironment", mock.Anything, mock.Anything)
}

func TestCreateEnvironment_Duplicate(t *testing.T) {
	svc, repo, options := newMockService()
	ctx := context.Background()

	repo.On("CreateEnvironment", ctx, mock.MatchedBy(func(e *models.Environment) bool {
		return e.Name == "staging" && e.BaseURL == "https://staging.example.com" && e.CreatedAt.Equal(fixedNow)
	})).Return(fmt.Errorf("failed: %w", storage.ErrDuplicate))

	_, err := svc.CreateEnvironment(ctx, models.EnvironmentCreate{Name: " staging ", BaseURL: " https://staging.example.com "})
	require.ErrorIs(t, err, ErrEnvironmentExists)
	require.Zero(t, options.invalidated)
}

func TestUpdateEnvironment(t *testing.T) {
	svc, repo, _ := newMockService()
	ctx := context.Background()

	_, err := svc.UpdateEnvironment(ctx, 1, models.EnvironmentPatch{})
	require.ErrorIs(t, err, ErrInvalidInput)

	repo.On("GetEnvironment", ctx, int64(9)).Return(nil, nil)
	_, err = svc.UpdateEnvironment(ctx, 9, models.EnvironmentPatch{Name: ptr("x")})
	require.ErrorIs(t, err, ErrEnvironmentNotFound)

	repo.On("GetEnvironment", ctx, int64(2)).Return(&models.Environment{ID: 2, Name: "staging"}, nil)
	repo.On("UpdateEnvironment", ctx, mock.Anything).Return(nil)

	got, err := svc.UpdateEnvironment(ctx, 2, models.EnvironmentPatch{BaseURL: ptr("http://10.0.0.5:8080")})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", got.BaseURL)
	assert.Equal(t, fixedNow, got.UpdatedAt)
}

func TestDeleteEnvironments(t *testing.T) {
	svc, repo, _ := newMockService()
	ctx := context.Background()

	_, err := svc.DeleteEnvironments(ctx, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	repo.On("DeleteEnvironments", ctx, []int64{4}).Return(int64(0), nil)
	_, err = svc.DeleteEnvironments(ctx, []int64{4, 4})
	require.ErrorIs(t, err, ErrEnvironmentNotFound)
}

func TestService_EnvironmentLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	staging, err := svc.CreateEnvironment(ctx, models.EnvironmentCreate{Name: "staging", BaseURL: "https://staging.example.com"})
	require.NoError(t, err)

	_, err = svc.CreateEnvironment(ctx, models.EnvironmentCreate{Name: "staging"})
	require.ErrorIs(t, err, ErrEnvironmentExists)

	prod, err := svc.CreateEnvironment(ctx, models.EnvironmentCreate{Name: "production"})
	require.NoError(t, err)

	_, err = svc.UpdateEnvironment(ctx, prod.ID, models.EnvironmentPatch{Name: ptr("staging")})
	require.ErrorIs(t, err, ErrEnvironmentExists)

	page, err := svc.ListEnvironments(ctx, models.EnvironmentQuery{Criteria: models.SearchCriteria{Name: ptr("stag")}})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "https://staging.example.com", *page.Items[0].BaseURL)
	assert.Equal(t, 1, *page.Items[0].Index)

	n, err := svc.DeleteEnvironments(ctx, []int64{staging.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = svc.GetEnvironment(ctx, staging.ID)
	require.ErrorIs(t, err, ErrEnvironmentNotFound)
}
