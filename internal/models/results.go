package models

import (
	"bytes"
	"encoding/json"
)

// ResultsSummary is the report summary attached to a finished task
type ResultsSummary struct {
	Total       int            `json:"total"`
	PassRate    string         `json:"pass_rate"`
	Duration    string         `json:"duration"`
	Environment string         `json:"environment"`
	Details     []ResultDetail `json:"details"`
}

// DetailKind tags the variant of a result detail entry
type DetailKind string

const (
	DetailCase      DetailKind = "case"
	DetailStep      DetailKind = "step"
	DetailAssertion DetailKind = "assertion"
)

// ResultDetail is one entry of a summary's details list.
// Members other than the known ones are kept in Extra, and non-object
// entries are kept verbatim in Raw, so decoding and re-encoding loses nothing.
type ResultDetail struct {
	Kind     DetailKind
	Name     string
	Status   string
	Duration string
	Message  string
	Extra    map[string]json.RawMessage
	Raw      json.RawMessage
}

// MarshalJSON implements json.Marshaler
func (d ResultDetail) MarshalJSON() ([]byte, error) {
	if d.Raw != nil {
		return d.Raw, nil
	}
	return joinMembers(d.Extra, map[string]string{
		"kind":     string(d.Kind),
		"name":     d.Name,
		"status":   d.Status,
		"duration": d.Duration,
		"message":  d.Message,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (d *ResultDetail) UnmarshalJSON(data []byte) error {
	var kind string
	known := map[string]*string{
		"kind":     &kind,
		"name":     &d.Name,
		"status":   &d.Status,
		"duration": &d.Duration,
		"message":  &d.Message,
	}
	extra, raw, err := splitMembers(data, known)
	if err != nil {
		return err
	}
	d.Kind = DetailKind(kind)
	d.Extra = extra
	d.Raw = raw
	return nil
}

// LogEntry is one line of a task's execution log, kept losslessly like ResultDetail
type LogEntry struct {
	Time    string
	Level   string
	Message string
	Extra   map[string]json.RawMessage
	Raw     json.RawMessage
}

// MarshalJSON implements json.Marshaler
func (l LogEntry) MarshalJSON() ([]byte, error) {
	if l.Raw != nil {
		return l.Raw, nil
	}
	return joinMembers(l.Extra, map[string]string{
		"time":    l.Time,
		"level":   l.Level,
		"message": l.Message,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (l *LogEntry) UnmarshalJSON(data []byte) error {
	known := map[string]*string{
		"time":    &l.Time,
		"level":   &l.Level,
		"message": &l.Message,
	}
	extra, raw, err := splitMembers(data, known)
	if err != nil {
		return err
	}
	l.Extra = extra
	l.Raw = raw
	return nil
}

// splitMembers decodes a JSON object, moving non-empty string members named in
// known into their targets. Anything else stays in extra. A non-object value is
// returned whole as raw.
func splitMembers(data []byte, known map[string]*string) (extra map[string]json.RawMessage, raw json.RawMessage, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		raw = make(json.RawMessage, len(trimmed))
		copy(raw, trimmed)
		return nil, raw, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return nil, nil, err
	}

	for key, target := range known {
		value, ok := members[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil || s == "" {
			continue
		}
		*target = s
		delete(members, key)
	}

	if len(members) == 0 {
		return nil, nil, nil
	}
	return members, nil, nil
}

func joinMembers(extra map[string]json.RawMessage, known map[string]string) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		if v == "" {
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = encoded
	}
	return json.Marshal(out)
}
