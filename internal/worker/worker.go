package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// TaskProcessor executes one dequeued task.
// Satisfied by driving.IngestionService.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task *domain.Task) error
}

// Worker pulls ingestion tasks from the queue and runs them through the
// processor, acknowledging successes and nacking failures for retry.
type Worker struct {
	taskQueue driven.TaskQueue
	processor TaskProcessor
	logger    *slog.Logger

	concurrency    int
	dequeueTimeout int // seconds
	idleWait       time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Processor      TaskProcessor
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout int           // Seconds to wait for a task before checking again
	IdleWait       time.Duration // Pause after an empty or failed dequeue
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	idleWait := cfg.IdleWait
	if idleWait <= 0 {
		idleWait = 250 * time.Millisecond
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		processor:      cfg.Processor,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		idleWait:       idleWait,
	}
}

// Start launches the processing goroutines and returns immediately.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w.taskQueue == nil || w.processor == nil {
		return errors.New("worker requires a task queue and a processor")
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	return nil
}

// Stop signals the goroutines and waits for in-flight tasks to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("failed to dequeue task", "error", err)
		}
		if task == nil {
			w.pause(ctx)
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// pause waits idleWait unless the worker is stopping.
func (w *Worker) pause(ctx context.Context) {
	timer := time.NewTimer(w.idleWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-timer.C:
	}
}

func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Info("processing task")

	start := time.Now()
	err := w.processor.ProcessTask(ctx, task)
	duration := time.Since(start)

	if err != nil {
		w.failed.Add(1)
		logger.Error("task failed", "duration", duration, "permanent", permanent(err), "error", err)
		w.settle(ctx, task, err, logger)
		return
	}

	w.processed.Add(1)
	logger.Info("task completed", "duration", duration, "document_id", task.DocumentID)
	if ackErr := w.taskQueue.Ack(ctx, task); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// settle retries transient failures and fails the rest outright.
func (w *Worker) settle(ctx context.Context, task *domain.Task, cause error, logger *slog.Logger) {
	var err error
	if permanent(cause) {
		err = w.taskQueue.Fail(ctx, task.ID, cause.Error())
	} else {
		err = w.taskQueue.Nack(ctx, task.ID, cause.Error())
	}
	if err != nil {
		logger.Error("failed to settle task", "settle_error", err)
	}
}

// permanent reports errors that the same payload would hit again: a
// malformed document or an invalid query.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidQuery)
}

// Health reports whether the worker runs and its queue answers.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Processed   int64  `json:"processed"`
	Failed      int64  `json:"failed"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	health := Health{Running: w.running}
	w.mu.RUnlock()
	health.Processed = w.processed.Load()
	health.Failed = w.failed.Load()

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}
	return health
}
