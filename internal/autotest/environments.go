package autotest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/terra-clan/autotest-engine/internal/models"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

// ListEnvironments returns one page of environment rows matching the query
func (s *Service) ListEnvironments(ctx context.Context, q models.EnvironmentQuery) (models.Page[models.EnvironmentRow], error) {
	filters, err := q.Filter()
	if err != nil {
		return models.Page[models.EnvironmentRow]{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	envs, total, err := s.repo.ListEnvironments(ctx, filters)
	if err != nil {
		return models.Page[models.EnvironmentRow]{}, fmt.Errorf("failed to list environments: %w", err)
	}

	rows := make([]models.EnvironmentRow, len(envs))
	for i, e := range envs {
		rows[i] = e.Row(filters.Offset + i + 1)
	}
	return models.NewPage(q.Page, total, rows), nil
}

// GetEnvironment returns an environment by ID
func (s *Service) GetEnvironment(ctx context.Context, id int64) (*models.Environment, error) {
	e, err := s.repo.GetEnvironment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	if e == nil {
		return nil, ErrEnvironmentNotFound
	}
	return e, nil
}

// CreateEnvironment validates and stores a new environment
func (s *Service) CreateEnvironment(ctx context.Context, in models.EnvironmentCreate) (*models.Environment, error) {
	in.Normalize()
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validateBaseURL(in.BaseURL); err != nil {
		return nil, err
	}

	now := s.now()
	e := &models.Environment{
		Name:        in.Name,
		BaseURL:     in.BaseURL,
		Description: in.Description,
		CreatorID:   in.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateEnvironment(ctx, e); err != nil {
		return nil, environmentWriteError(e.Name, err)
	}

	slog.Info("environment created", "environment_id", e.ID, "name", e.Name)
	return s.GetEnvironment(ctx, e.ID)
}

// UpdateEnvironment applies a partial update to an environment
func (s *Service) UpdateEnvironment(ctx context.Context, id int64, patch models.EnvironmentPatch) (*models.Environment, error) {
	if patch.IsEmpty() {
		return nil, invalid("nothing to update")
	}

	e, err := s.GetEnvironment(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(e)
	if err := validateName(e.Name); err != nil {
		return nil, err
	}
	if err := validateBaseURL(e.BaseURL); err != nil {
		return nil, err
	}
	e.UpdatedAt = s.now()

	if err := s.repo.UpdateEnvironment(ctx, e); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEnvironmentNotFound
		}
		return nil, environmentWriteError(e.Name, err)
	}

	slog.Info("environment updated", "environment_id", e.ID)
	return e, nil
}

// DeleteEnvironments deletes environments by ID
func (s *Service) DeleteEnvironments(ctx context.Context, ids []int64) (int64, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.DeleteEnvironments(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete environments: %w", err)
	}
	if n == 0 {
		return 0, ErrEnvironmentNotFound
	}

	slog.Info("environments deleted", "requested", len(ids), "deleted", n)
	return n, nil
}

// validateBaseURL accepts an empty value or an absolute http(s) URL
func validateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("base_url must be an absolute http or https URL")
	}
	return nil
}

func environmentWriteError(name string, err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %q", ErrEnvironmentExists, name)
	case errors.Is(err, storage.ErrForeignKey):
		return invalid("creator does not exist")
	}
	return fmt.Errorf("failed to save environment: %w", err)
}
