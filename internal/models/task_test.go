package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullTaskRow() TaskRow {
	return TaskRow{
		ID:          ptr(int64(12)),
		Index:       ptr(3),
		Name:        ptr("nightly regression"),
		ProjectID:   ptr(int64(4)),
		Description: ptr("runs every night"),
		Status:      ptr("completed"),
		StartTime:   ptr("2024-02-01 01:00:00"),
		EndTime:     ptr("2024-02-01 01:05:00"),
		Summary: &ResultsSummary{
			Total:       10,
			PassRate:    "70.00%",
			Duration:    "300s",
			Environment: "staging",
			Details: []ResultDetail{
				{Kind: DetailCase, Name: "login", Status: "passed", Duration: "1.2s"},
				{Kind: "custom", Name: "x", Extra: map[string]json.RawMessage{"retries": json.RawMessage(`2`)}},
				{Raw: json.RawMessage(`"free text"`)},
			},
		},
		TotalCount:     ptr(10),
		SuccessCount:   ptr(7),
		FailCount:      ptr(2),
		SkipCount:      ptr(1),
		ErrorCount:     ptr(0),
		Logs:           &[]LogEntry{{Time: "2024-02-01 01:00:00", Level: "info", Message: "start"}},
		ActualResponse: json.RawMessage(`{"code":200,"body":["a",1]}`),
		Project:        &ProjectRef{ID: ptr(int64(4)), Name: ptr("payments")},
		CreatedAt:      ptr("2024-01-31 10:00:00"),
		UpdatedAt:      ptr("2024-02-01 01:05:00"),
		Creator:        &CreatorRef{ID: ptr(int64(1)), Name: ptr("Admin"), Username: ptr("admin")},
	}
}

func TestTaskRow_RoundTrip(t *testing.T) {
	in := fullTaskRow()

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out TaskRow
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestTaskRow_NestedRecordsMayBeAbsent(t *testing.T) {
	var row TaskRow
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"smoke","total_count":0}`), &row))
	require.Nil(t, row.Summary)
	require.Nil(t, row.Project)
	require.Nil(t, row.Creator)
	require.NotNil(t, row.TotalCount)
	require.Equal(t, 0, *row.TotalCount)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1,"name":"smoke","total_count":0}`, string(data))
}

func TestTaskRow_EmptyLogsSurvive(t *testing.T) {
	var row TaskRow
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"logs":[]}`), &row))
	require.NotNil(t, row.Logs)
	require.Empty(t, *row.Logs)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1,"logs":[]}`, string(data))

	task := &Task{ID: 1, Logs: []LogEntry{}}
	data, err = json.Marshal(task.Row(1))
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.JSONEq(t, `[]`, string(fields["logs"]))

	task.Logs = nil
	data, err = json.Marshal(task.Row(1))
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "logs")
}

func TestProjectRow_RoundTrip(t *testing.T) {
	in := ProjectRow{
		ID:          ptr(int64(4)),
		Index:       ptr(1),
		Name:        ptr("payments"),
		Description: ptr("payment gateway suites"),
		CreatedAt:   ptr("2024-01-01 00:00:00"),
		UpdatedAt:   ptr("2024-01-02 00:00:00"),
		Creator:     &CreatorRef{ID: ptr(int64(1)), Username: ptr("admin")},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out ProjectRow
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)

	var bare ProjectRow
	require.NoError(t, json.Unmarshal([]byte(`{}`), &bare))
	require.Nil(t, bare.Creator)
}

func TestProjectSelector_RoundTrip(t *testing.T) {
	in := ProjectSelector{ID: ptr(int64(9)), Name: ptr("mobile"), Description: ptr("")}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out ProjectSelector
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestResultDetail_KeepsUnknownData(t *testing.T) {
	input := `[{"kind":"case","name":"a","elapsed_ms":12,"tags":["x"]},{"name":"","status":"ok"},42,null,["nested"]]`

	var details []ResultDetail
	require.NoError(t, json.Unmarshal([]byte(input), &details))
	require.Len(t, details, 5)
	assert.Equal(t, DetailCase, details[0].Kind)
	assert.Equal(t, "a", details[0].Name)
	assert.JSONEq(t, `12`, string(details[0].Extra["elapsed_ms"]))
	assert.Equal(t, "ok", details[1].Status)
	assert.JSONEq(t, `""`, string(details[1].Extra["name"]))
	assert.Equal(t, json.RawMessage(`42`), details[2].Raw)

	out, err := json.Marshal(details)
	require.NoError(t, err)
	require.JSONEq(t, input, string(out))
}

func TestLogEntry_KeepsUnknownData(t *testing.T) {
	input := `[{"time":"2024-01-01 00:00:00","level":"warn","message":"slow","step":3},"plain line"]`

	var logs []LogEntry
	require.NoError(t, json.Unmarshal([]byte(input), &logs))
	require.Equal(t, "warn", logs[0].Level)
	require.Equal(t, json.RawMessage(`"plain line"`), logs[1].Raw)

	out, err := json.Marshal(logs)
	require.NoError(t, err)
	require.JSONEq(t, input, string(out))
}

func TestCounts_Consistency(t *testing.T) {
	c := Counts{Total: 10, Success: 7, Fail: 2, Skip: 1, Error: 0}
	require.True(t, c.Consistent())
	require.NoError(t, c.Validate())

	gap := Counts{Total: 10, Success: 7}
	require.False(t, gap.Consistent())
	require.NoError(t, gap.Validate())

	require.Error(t, Counts{Fail: -1}.Validate())
}

func TestTask_Row(t *testing.T) {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	task := &Task{
		ID:        5,
		Name:      "smoke",
		ProjectID: 2,
		Status:    TaskPending,
		Counts:    Counts{Total: 3, Success: 3},
		CreatedAt: created,
		UpdatedAt: created,
	}

	row := task.Row(11)
	require.Equal(t, 11, *row.Index)
	require.Equal(t, int64(2), *row.ProjectID)
	require.Equal(t, int64(2), *row.Project.ID)
	require.Nil(t, row.Project.Name)
	require.Nil(t, row.StartTime)
	require.Nil(t, row.Summary)
	require.Nil(t, row.Creator)
	require.Equal(t, "pending", *row.Status)
	require.Equal(t, "2024-01-01 09:00:00", *row.CreatedAt)
	require.Equal(t, 3, *row.SuccessCount)
}

func TestParseTaskStatus(t *testing.T) {
	s, err := ParseTaskStatus(" Running ")
	require.NoError(t, err)
	require.Equal(t, TaskRunning, s)
	require.False(t, s.IsTerminal())

	_, err = ParseTaskStatus("paused")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestResultReport_Times(t *testing.T) {
	start, end, err := ResultReport{StartTime: "2024-01-01 10:00:00", EndTime: "2024-01-01 10:01:00"}.Times()
	require.NoError(t, err)
	require.Equal(t, time.Minute, end.Sub(*start))

	_, _, err = ResultReport{StartTime: "2024-01-01 10:00:00", EndTime: "2024-01-01 09:00:00"}.Times()
	require.Error(t, err)

	start, end, err = ResultReport{}.Times()
	require.NoError(t, err)
	require.Nil(t, start)
	require.Nil(t, end)
}

func TestTaskQuery_Filter(t *testing.T) {
	name := " api "
	q := TaskQuery{
		Criteria: SearchCriteria{Name: &name},
		Status:   TaskFailed,
		Page:     PageRequest{PageNo: 3, PageSize: 500},
	}
	f, err := q.Filter()
	require.NoError(t, err)
	require.Equal(t, "api", f.NameLike)
	require.Equal(t, MaxPageSize, f.Limit)
	require.Equal(t, 2*MaxPageSize, f.Offset)

	_, err = TaskQuery{Status: "paused"}.Filter()
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestNewPage(t *testing.T) {
	p := NewPage(PageRequest{PageNo: 1, PageSize: 2}, 3, []int{1, 2})
	require.True(t, p.HasNext)

	p = NewPage(PageRequest{PageNo: 2, PageSize: 2}, 3, []int{3})
	require.False(t, p.HasNext)

	empty := NewPage[int](PageRequest{}, 0, nil)
	require.NotNil(t, empty.Items)
	require.Equal(t, DefaultPageSize, empty.PageSize)
}
