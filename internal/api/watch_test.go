package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/autotest-engine/internal/models"
)

func dialWatch(t *testing.T, ts *httptest.Server, id int64) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/autotest/task/watch?id=" + strconv.FormatInt(id, 10)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWatch(t *testing.T, conn *websocket.Conn) WatchMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WatchMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWatchTask_StreamsChanges(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, models.ProjectCreate{Name: "payments"})
	require.NoError(t, err)
	task, err := svc.CreateTask(ctx, models.TaskCreate{Name: "smoke", ProjectID: project.ID})
	require.NoError(t, err)

	conn := dialWatch(t, ts, task.ID)

	first := readWatch(t, conn)
	require.Equal(t, watchTypeTask, first.Type)
	require.Equal(t, "pending", *first.Task.Status)

	_, err = svc.ReportResult(ctx, task.ID, models.ResultReport{
		Status: models.TaskCompleted,
		Counts: models.Counts{Total: 1, Success: 1},
	})
	require.NoError(t, err)

	update := readWatch(t, conn)
	require.Equal(t, watchTypeTask, update.Type)
	require.Equal(t, "completed", *update.Task.Status)
	require.Equal(t, 1, *update.Task.SuccessCount)

	_, err = svc.DeleteTasks(ctx, []int64{task.ID})
	require.NoError(t, err)

	gone := readWatch(t, conn)
	require.Equal(t, watchTypeDeleted, gone.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestWatchTask_RejectsBeforeUpgrade(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/autotest/task/watch"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?id=42", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
