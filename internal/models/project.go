package models

import (
	"strings"
	"time"
)

// User is a system user that can be recorded as the creator of projects and tasks
type User struct {
	ID        int64     `json:"id" yaml:"-"`
	Name      string    `json:"name" yaml:"name"`
	Username  string    `json:"username" yaml:"username"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Ref returns the reduced creator view of the user
func (u *User) Ref() *CreatorRef {
	if u == nil {
		return nil
	}
	return &CreatorRef{
		ID:       ptr(u.ID),
		Name:     ptr(u.Name),
		Username: ptr(u.Username),
	}
}

// CreatorRef is a read-only snapshot of the user who created a record
type CreatorRef struct {
	ID       *int64  `json:"id,omitempty"`
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
}

// Project groups automated test tasks
type Project struct {
	ID          int64
	Name        string
	Description string
	CreatorID   *int64
	Creator     *User
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectRow is a project table row as sent to the admin view
type ProjectRow struct {
	ID          *int64      `json:"id,omitempty"`
	Index       *int        `json:"index,omitempty"`
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	CreatedAt   *string     `json:"created_at,omitempty"`
	UpdatedAt   *string     `json:"updated_at,omitempty"`
	Creator     *CreatorRef `json:"creator,omitempty"`
}

// Row converts the project into a table row at the given display index
func (p *Project) Row(index int) ProjectRow {
	return ProjectRow{
		ID:          ptr(p.ID),
		Index:       ptr(index),
		Name:        ptr(p.Name),
		Description: ptr(p.Description),
		CreatedAt:   FormatTime(p.CreatedAt),
		UpdatedAt:   FormatTime(p.UpdatedAt),
		Creator:     p.Creator.Ref(),
	}
}

// Selector returns the dropdown view of the project
func (p *Project) Selector() ProjectSelector {
	return ProjectSelector{
		ID:          ptr(p.ID),
		Name:        ptr(p.Name),
		Description: ptr(p.Description),
	}
}

// Ref returns the id/name reference embedded in task rows
func (p *Project) Ref() *ProjectRef {
	if p == nil {
		return nil
	}
	return &ProjectRef{ID: ptr(p.ID), Name: ptr(p.Name)}
}

// ProjectSelector is the minimal project shape used to pick a project from a list
type ProjectSelector struct {
	ID          *int64  `json:"id,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ProjectRef is the project reference nested in a task row
type ProjectRef struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

// ProjectCreate holds the inputs for a new project
type ProjectCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatorID   *int64 `json:"creator_id,omitempty"`
}

// Normalize trims the text inputs
func (c *ProjectCreate) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
}

// ProjectPatch is a partial project update. Nil fields are left unchanged.
type ProjectPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p ProjectPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil
}

// Apply copies the set fields onto proj
func (p ProjectPatch) Apply(proj *Project) {
	if p.Name != nil {
		proj.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		proj.Description = strings.TrimSpace(*p.Description)
	}
}

// ProjectFilter defines storage-level filters for listing projects
type ProjectFilter struct {
	NameLike    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ProjectQuery is a project list request from the admin view
type ProjectQuery struct {
	Criteria SearchCriteria
	Page     PageRequest
}

// Filter converts the query into storage filters
func (q ProjectQuery) Filter() (ProjectFilter, error) {
	from, to, err := q.Criteria.CreatedBounds()
	if err != nil {
		return ProjectFilter{}, err
	}
	page := q.Page.Normalize()
	return ProjectFilter{
		NameLike:    q.Criteria.NameFragment(),
		CreatedFrom: from,
		CreatedTo:   to,
		Limit:       page.PageSize,
		Offset:      page.Offset(),
	}, nil
}

func ptr[T any](v T) *T {
	return &v
}
