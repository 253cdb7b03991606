package models

import (
	"strings"
	"time"
)

// Environment is a named deployment that tasks run against
type Environment struct {
	ID          int64
	Name        string
	BaseURL     string
	Description string
	CreatorID   *int64
	Creator     *User
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnvironmentRow is an environment table row as sent to the admin view
type EnvironmentRow struct {
	ID          *int64      `json:"id,omitempty"`
	Index       *int        `json:"index,omitempty"`
	Name        *string     `json:"name,omitempty"`
	BaseURL     *string     `json:"base_url,omitempty"`
	Description *string     `json:"description,omitempty"`
	CreatedAt   *string     `json:"created_at,omitempty"`
	UpdatedAt   *string     `json:"updated_at,omitempty"`
	Creator     *CreatorRef `json:"creator,omitempty"`
}

// Row converts the environment into a table row at the given display index
func (e *Environment) Row(index int) EnvironmentRow {
	return EnvironmentRow{
		ID:          ptr(e.ID),
		Index:       ptr(index),
		Name:        ptr(e.Name),
		BaseURL:     ptr(e.BaseURL),
		Description: ptr(e.Description),
		CreatedAt:   FormatTime(e.CreatedAt),
		UpdatedAt:   FormatTime(e.UpdatedAt),
		Creator:     e.Creator.Ref(),
	}
}

// EnvironmentCreate holds the inputs for a new environment
type EnvironmentCreate struct {
	Name        string `json:"name"`
	BaseURL     string `json:"base_url"`
	Description string `json:"description"`
	CreatorID   *int64 `json:"creator_id,omitempty"`
}

// Normalize trims the text inputs
func (c *EnvironmentCreate) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Description = strings.TrimSpace(c.Description)
}

// EnvironmentPatch is a partial environment update. Nil fields are left unchanged.
type EnvironmentPatch struct {
	Name        *string `json:"name,omitempty"`
	BaseURL     *string `json:"base_url,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p EnvironmentPatch) IsEmpty() bool {
	return p.Name == nil && p.BaseURL == nil && p.Description == nil
}

// Apply copies the set fields onto env
func (p EnvironmentPatch) Apply(env *Environment) {
	if p.Name != nil {
		env.Name = strings.TrimSpace(*p.Name)
	}
	if p.BaseURL != nil {
		env.BaseURL = strings.TrimSpace(*p.BaseURL)
	}
	if p.Description != nil {
		env.Description = strings.TrimSpace(*p.Description)
	}
}

// EnvironmentFilter defines storage-level filters for listing environments
type EnvironmentFilter struct {
	NameLike    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// EnvironmentQuery is an environment list request from the admin view
type EnvironmentQuery struct {
	Criteria SearchCriteria
	Page     PageRequest
}

// Filter converts the query into storage filters
func (q EnvironmentQuery) Filter() (EnvironmentFilter, error) {
	from, to, err := q.Criteria.CreatedBounds()
	if err != nil {
		return EnvironmentFilter{}, err
	}
	page := q.Page.Normalize()
	return EnvironmentFilter{
		NameLike:    q.Criteria.NameFragment(),
		CreatedFrom: from,
		CreatedTo:   to,
		Limit:       page.PageSize,
		Offset:      page.Offset(),
	}, nil
}
