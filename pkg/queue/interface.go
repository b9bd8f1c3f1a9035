package queue

import (
	"context"
)

// Handler processes one dispatched task. Returning nil acknowledges the
// message; the worker only returns nil after the job's outcome has been
// durably reported, so the queue layer gives us at-least-once execution
// and the lifecycle manager's idempotent outcome reporting absorbs
// duplicates.
type Handler func(ctx context.Context, t *Task) error

// Queue is an asynchronous channel carrying discovery tasks from the API
// layer to worker processes.
type Queue interface {
	// Register the handler run for dispatched discovery tasks.
	Register(h Handler) error

	// Run the queue & process tasks (via the Register'd handler).
	// Blocks until Close() is called.
	Run() error

	// Enqueue a task. Returns the queue's own id for the queued message,
	// with which we can later call Kill or InFlight.
	Enqueue(ctx context.Context, t *Task) (string, error)

	// Kill a queued task by the id Enqueue gave us. Best effort.
	Kill(queueTaskID string) error

	// InFlight reports whether the queue still holds the given task
	// (queued, scheduled or actively being worked). Used by the
	// reconciliation sweep to tell a lost dispatch from a slow one.
	InFlight(queueTaskID string) (bool, error)

	// Close & shutdown the queue.
	Close() error
}
