package driving

import (
	"context"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// IngestionService loads policy documents from the embedded corpus, from
// files, or asynchronously through the task queue.
type IngestionService interface {
	// SeedPolicies loads the predefined policies when the store is empty.
	// Returns the number of documents added.
	SeedPolicies(ctx context.Context) (int, error)

	// IngestFile normalises and adds one file. An empty category is
	// derived from the file's directory name.
	IngestFile(ctx context.Context, path, category string) (int64, error)

	// IngestGlob ingests every file matching a doublestar pattern.
	IngestGlob(ctx context.Context, pattern, category string) ([]int64, error)

	// Watch ingests files matching pattern under dir as they are created or
	// changed, replacing the previous version of a changed file. Blocks
	// until ctx is cancelled.
	Watch(ctx context.Context, dir, pattern, category string) error

	// Enqueue schedules req for background ingestion and returns the task ID.
	// Returns domain.ErrServiceUnavailable when no queue is configured.
	Enqueue(ctx context.Context, req domain.AddDocumentRequest) (string, error)

	// EnqueueSeed schedules a background seeding task.
	EnqueueSeed(ctx context.Context) (string, error)

	// TaskStatus reports the state of a queued task.
	TaskStatus(ctx context.Context, taskID string) (*domain.Task, error)

	// ProcessTask executes one dequeued task. Used by the worker.
	ProcessTask(ctx context.Context, task *domain.Task) error
}
