package reaper

import (
	"context"
	"log/slog"
	"time"
)

// TaskFailer marks long-running tasks as failed
type TaskFailer interface {
	FailStaleTasks(ctx context.Context, olderThan time.Duration) (int, error)
}

// Reaper periodically fails tasks stuck in the running state
type Reaper struct {
	tasks      TaskFailer
	interval   time.Duration
	staleAfter time.Duration
}

// New creates a new reaper worker
func New(tasks TaskFailer, interval, staleAfter time.Duration) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Hour
	}

	return &Reaper{
		tasks:      tasks,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Start begins the reaper in a goroutine
func (r *Reaper) Start(ctx context.Context) {
	go r.Run(ctx)
}

// Run is the main loop. It returns when ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("task reaper started", "interval", r.interval, "stale_after", r.staleAfter)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.reap(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("task reaper stopped")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	slog.Debug("running reaper cycle")

	n, err := r.tasks.FailStaleTasks(ctx, r.staleAfter)
	if err != nil {
		slog.Error("failed to reap stale tasks", "error", err, "failed_so_far", n)
		return
	}

	if n > 0 {
		slog.Info("stale tasks failed", "count", n)
	}
}
