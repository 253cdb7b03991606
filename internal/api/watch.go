package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/autotest-engine/internal/autotest"
	"github.com/terra-clan/autotest-engine/internal/models"
)

const watchWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WatchMessage is a frame sent to task watchers
type WatchMessage struct {
	Type    string          `json:"type"`
	Task    *models.TaskRow `json:"task,omitempty"`
	Message string          `json:"message,omitempty"`
}

const (
	watchTypeTask    = "task"
	watchTypeDeleted = "deleted"
	watchTypeError   = "error"
)

func (s *Server) handleWatchTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query(), "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	task, err := s.manager.GetTask(r.Context(), id)
	if err != nil {
		respondManagerError(w, r, err, "get task")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "task_id", id, "error", err)
		return
	}
	defer conn.Close()

	watchID := uuid.NewString()
	log := slog.With("watch_id", watchID, "task_id", id)
	log.Info("task watch connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Incoming frames are discarded; a read error means the client went away
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	s.pollTask(ctx, conn, log, task)

	cancel()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(watchWriteWait))
	conn.Close()
	wg.Wait()

	log.Info("task watch disconnected")
}

// pollTask sends the task and then re-sends it whenever updated_at moves.
// It returns when ctx is done, a write fails or the task is deleted.
func (s *Server) pollTask(ctx context.Context, conn *websocket.Conn, log *slog.Logger, task *models.Task) {
	row := task.Row(1)
	if err := sendWatchMessage(conn, WatchMessage{Type: watchTypeTask, Task: &row}); err != nil {
		return
	}
	last := task.UpdatedAt

	ticker := time.NewTicker(s.watch.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, err := s.manager.GetTask(ctx, task.ID)
		switch {
		case errors.Is(err, autotest.ErrTaskNotFound):
			log.Info("watched task deleted")
			sendWatchMessage(conn, WatchMessage{Type: watchTypeDeleted, Message: err.Error()})
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Warn("failed to poll watched task", "error", err)
			if sendWatchMessage(conn, WatchMessage{Type: watchTypeError, Message: "failed to load task"}) != nil {
				return
			}
			continue
		}

		if current.UpdatedAt.Equal(last) {
			continue
		}
		last = current.UpdatedAt

		row := current.Row(1)
		if err := sendWatchMessage(conn, WatchMessage{Type: watchTypeTask, Task: &row}); err != nil {
			return
		}
		log.Debug("watched task changed", "status", current.Status)
	}
}

func sendWatchMessage(conn *websocket.Conn, msg WatchMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal watch message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send watch message", "error", err)
		return err
	}
	return nil
}
