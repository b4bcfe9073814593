package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

// ErrQueueFull is returned when the pending queue cannot take another
// job; the service boundary surfaces it as backpressure.
var ErrQueueFull = errors.New("scheduling queue full")

// Task is one unit of background work. ID is the caller correlation id
// and may be empty.
type Task struct {
	ID   string
	Kind string
	Run  func(ctx context.Context)
}

// SchedulerConfig defines concurrency limits.
type SchedulerConfig struct {
	// MaxConcurrentJobs bounds parallel job execution. The default of 1
	// matches a single safely-parallel inference slot.
	MaxConcurrentJobs int64
}

// JobScheduler accepts fire-and-forget jobs and runs each as an
// independent background task under a weighted-semaphore bound. The
// consumer loop never blocks on job execution.
type JobScheduler struct {
	logger       *slog.Logger
	pendingQueue chan Task
	semaphore    *semaphore.Weighted
}

func NewJobScheduler(logger *slog.Logger, cfg SchedulerConfig) *JobScheduler {
	limit := cfg.MaxConcurrentJobs
	if limit <= 0 {
		limit = 1
	}

	return &JobScheduler{
		logger:       logger,
		pendingQueue: make(chan Task, 100),
		semaphore:    semaphore.NewWeighted(limit),
	}
}

// Submit adds a task to the scheduling queue without blocking.
func (s *JobScheduler) Submit(task Task) error {
	select {
	case s.pendingQueue <- task:
		s.logger.Info("job submitted", "job_id", task.ID, "kind", task.Kind)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start consumes the queue until ctx is cancelled. Each task acquires a
// semaphore slot and then runs in its own goroutine.
func (s *JobScheduler) Start(ctx context.Context) {
	s.logger.Info("starting job scheduler")

	go func() {
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("stopping scheduler")
				return
			case task := <-s.pendingQueue:
				if err := s.semaphore.Acquire(ctx, 1); err != nil {
					s.logger.Error("failed to acquire semaphore", "error", err)
					return
				}

				go func(t Task) {
					defer s.semaphore.Release(1)
					t.Run(ctx)
				}(task)
			}
		}
	}()
}
