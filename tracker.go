package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultAckGrace bounds how long Drain waits for cancelled tasks to
// acknowledge cancellation before abandoning them.
const defaultAckGrace = 5 * time.Second

// TaskTracker owns the set of in-flight background status checks. Tasks
// are added when spawned and remove themselves on every exit path, so at
// any point the set holds exactly the checks that have not finished.
type TaskTracker struct {
	mu      sync.Mutex
	pending map[*trackedTask]struct{}

	baseCtx  context.Context
	logger   *slog.Logger
	ackGrace time.Duration
}

type trackedTask struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// newTaskTracker creates a tracker whose tasks derive from baseCtx.
// baseCtx should outlive the scheduler so that Drain, not process
// shutdown, decides when tasks get cancelled.
func newTaskTracker(baseCtx context.Context, logger *slog.Logger) *TaskTracker {
	return &TaskTracker{
		pending:  make(map[*trackedTask]struct{}),
		baseCtx:  baseCtx,
		logger:   logger,
		ackGrace: defaultAckGrace,
	}
}

// Len returns the number of tasks currently in flight
func (t *TaskTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Spawn runs fn concurrently under a cancellable context and tracks it
// until it returns. A panicking task is logged and discarded; it never
// takes the process down.
func (t *TaskTracker) Spawn(name string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(t.baseCtx)
	task := &trackedTask{name: name, cancel: cancel, done: make(chan struct{})}

	t.mu.Lock()
	t.pending[task] = struct{}{}
	t.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("Background task panicked", "task", name, "panic", r)
			}
			cancel()
			t.mu.Lock()
			delete(t.pending, task)
			t.mu.Unlock()
			close(task.done)
		}()
		fn(ctx)
	}()
}

// Drain waits up to timeout for all currently pending tasks, cancels any
// still outstanding, then waits a bounded grace period for the
// cancellations to be acknowledged. It never blocks indefinitely, even
// for a task that ignores its context.
func (t *TaskTracker) Drain(timeout time.Duration) {
	t.mu.Lock()
	tasks := make([]*trackedTask, 0, len(t.pending))
	for task := range t.pending {
		tasks = append(tasks, task)
	}
	t.mu.Unlock()

	if len(tasks) == 0 {
		return
	}

	t.logger.Info("Waiting for pending status checks", "count", len(tasks))
	remaining := waitTasks(tasks, timeout)
	if len(remaining) == 0 {
		return
	}

	t.logger.Warn("Cancelling pending status checks", "count", len(remaining))
	for _, task := range remaining {
		task.cancel()
	}
	if left := waitTasks(remaining, t.ackGrace); len(left) > 0 {
		t.logger.Warn("Abandoning unresponsive status checks", "count", len(left))
	}
}

// waitTasks waits for the given tasks up to timeout and returns those
// that may still be running when the deadline hits.
func waitTasks(tasks []*trackedTask, timeout time.Duration) []*trackedTask {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for i, task := range tasks {
		select {
		case <-task.done:
		case <-deadline.C:
			return tasks[i:]
		}
	}
	return nil
}
