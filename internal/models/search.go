package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the text encoding of every timestamp exchanged with the admin views
const TimeLayout = "2006-01-02 15:04:05"

const dateLayout = "2006-01-02"

// ErrInvalidDateRange is returned when a date range cannot be parsed or is inverted
var ErrInvalidDateRange = errors.New("invalid date range")

// DateRange is an ordered [start, end] pair of text-encoded points in time.
// An empty bound leaves that side of the range open.
type DateRange struct {
	Start string
	End   string
}

// MarshalJSON encodes the range as a two-element array
func (d DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{d.Start, d.End})
}

// UnmarshalJSON accepts only a two-element array of strings
func (d *DateRange) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("date_range: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("date_range: expected 2 values, got %d", len(pair))
	}
	d.Start, d.End = pair[0], pair[1]
	return nil
}

// Bounds parses both ends of the range. A date-only end bound covers the whole day.
func (d DateRange) Bounds() (from, to *time.Time, err error) {
	if s := strings.TrimSpace(d.Start); s != "" {
		t, err := ParseTime(s)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: start %q", ErrInvalidDateRange, d.Start)
		}
		from = &t
	}

	if s := strings.TrimSpace(d.End); s != "" {
		t, err := ParseTime(s)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: end %q", ErrInvalidDateRange, d.End)
		}
		if len(s) == len(dateLayout) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		to = &t
	}

	if from != nil && to != nil && from.After(*to) {
		return nil, nil, fmt.Errorf("%w: start after end", ErrInvalidDateRange)
	}
	return from, to, nil
}

// ParseTime parses a timestamp in TimeLayout, RFC3339 or date-only form.
// Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// FormatTime renders t in TimeLayout, or nil for the zero time
func FormatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(TimeLayout)
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

// SearchCriteria holds the user-supplied filters shared by the project and task views.
// Absent fields mean no filter.
type SearchCriteria struct {
	Name      *string    `json:"name,omitempty"`
	DateRange *DateRange `json:"date_range,omitempty"`
}

// NameFragment returns the trimmed name filter, or "" when absent
func (c SearchCriteria) NameFragment() string {
	if c.Name == nil {
		return ""
	}
	return strings.TrimSpace(*c.Name)
}

// IsEmpty reports whether no filter is applied
func (c SearchCriteria) IsEmpty() bool {
	return c.NameFragment() == "" && c.DateRange == nil
}

// CreatedBounds returns the parsed created_at bounds of the criteria
func (c SearchCriteria) CreatedBounds() (from, to *time.Time, err error) {
	if c.DateRange == nil {
		return nil, nil, nil
	}
	return c.DateRange.Bounds()
}
