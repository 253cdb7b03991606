package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/terra-clan/autotest-engine/internal/models"
)

// parseCriteria reads name and date_range from the query. date_range may be
// sent as repeated date_range or date_range[] parameters.
func parseCriteria(q url.Values) (models.SearchCriteria, error) {
	var c models.SearchCriteria

	if name := strings.TrimSpace(q.Get("name")); name != "" {
		c.Name = &name
	}

	values := append(append([]string{}, q["date_range"]...), q["date_range[]"]...)
	switch len(values) {
	case 0:
	case 2:
		c.DateRange = &models.DateRange{Start: values[0], End: values[1]}
	default:
		return c, fmt.Errorf("date_range needs exactly 2 values, got %d", len(values))
	}

	return c, nil
}

func parsePage(q url.Values) (models.PageRequest, error) {
	var page models.PageRequest
	var err error

	if page.PageNo, err = optionalInt(q, "page_no"); err != nil {
		return page, err
	}
	if page.PageSize, err = optionalInt(q, "page_size"); err != nil {
		return page, err
	}
	return page, nil
}

func optionalInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}

func parseID(q url.Values, key string) (int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return id, nil
}

func parseOptionalID(q url.Values, key string) (*int64, error) {
	if strings.TrimSpace(q.Get(key)) == "" {
		return nil, nil
	}
	id, err := parseID(q, key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseTaskQuery(q url.Values) (models.TaskQuery, error) {
	var query models.TaskQuery
	var err error

	if query.Criteria, err = parseCriteria(q); err != nil {
		return query, err
	}
	if query.Page, err = parsePage(q); err != nil {
		return query, err
	}
	if query.ProjectID, err = parseOptionalID(q, "project_id"); err != nil {
		return query, err
	}
	if query.Status, err = parseStatus(q.Get("status")); err != nil {
		return query, err
	}
	return query, nil
}

// parseStatus parses an optional status filter case-insensitively
func parseStatus(raw string) (models.TaskStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return models.ParseTaskStatus(raw)
}
