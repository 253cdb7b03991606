package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSearchCriteria_RoundTrip(t *testing.T) {
	name := "login"
	in := SearchCriteria{
		Name:      &name,
		DateRange: &DateRange{Start: "2024-01-01 00:00:00", End: "2024-01-31 23:59:59"},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"login","date_range":["2024-01-01 00:00:00","2024-01-31 23:59:59"]}`, string(data))

	var out SearchCriteria
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestSearchCriteria_AbsentFieldsMeanNoFilter(t *testing.T) {
	var c SearchCriteria
	require.NoError(t, json.Unmarshal([]byte(`{}`), &c))
	require.True(t, c.IsEmpty())

	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.Equal(t, `{}`, string(data))

	blank := "   "
	require.True(t, SearchCriteria{Name: &blank}.IsEmpty())

	from, to, err := c.CreatedBounds()
	require.NoError(t, err)
	require.Nil(t, from)
	require.Nil(t, to)
}

func TestDateRange_RejectsWrongShape(t *testing.T) {
	cases := []string{
		`{"date_range":["2024-01-01"]}`,
		`{"date_range":["a","b","c"]}`,
		`{"date_range":"2024-01-01"}`,
		`{"date_range":[1,2]}`,
	}
	for _, tc := range cases {
		var c SearchCriteria
		require.Error(t, json.Unmarshal([]byte(tc), &c), tc)
	}
}

func TestDateRange_Bounds(t *testing.T) {
	from, to, err := DateRange{Start: "2024-03-01", End: "2024-03-02"}.Bounds()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *from)
	require.Equal(t, time.Date(2024, 3, 2, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), *to)

	from, to, err = DateRange{Start: "2024-03-01T08:00:00+08:00", End: ""}.Bounds()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *from)
	require.Nil(t, to)

	_, _, err = DateRange{Start: "2024-03-05 00:00:00", End: "2024-03-01 00:00:00"}.Bounds()
	require.ErrorIs(t, err, ErrInvalidDateRange)

	_, _, err = DateRange{Start: "yesterday", End: ""}.Bounds()
	require.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestFormatTime(t *testing.T) {
	require.Nil(t, FormatTime(time.Time{}))

	s := FormatTime(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	require.NotNil(t, s)
	require.Equal(t, "2024-05-06 07:08:09", *s)
}
