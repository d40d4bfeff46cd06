package driven

import (
	"context"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// TaskQueue carries background ingestion tasks to workers.
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout retrieves the next available task, waiting up to timeout seconds.
	// Returns nil, nil if timeout is reached with no tasks available.
	// The task is marked as processing and will not be returned to other workers.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, task *domain.Task) error

	// Nack indicates task processing failed and should be retried.
	// If max attempts are exceeded, the task is moved to failed state.
	Nack(ctx context.Context, taskID string, reason string) error

	// Fail marks the task failed without retrying it, for errors a retry
	// cannot fix.
	Fail(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	// Returns domain.ErrNotFound if the task is unknown or expired.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	PendingCount   int64 `json:"pending_count"`
	ScheduledCount int64 `json:"scheduled_count"`
}
