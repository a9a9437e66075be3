package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
)

// errSchedulerStopped fails jobs cut short by a shutdown deadline
var errSchedulerStopped = &domain.JobError{
	Kind:    domain.KindInternalFault,
	Message: "scheduler stopped before the job finished",
}

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine. It runs
// until the queue is closed and drained.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for jobID := range w.queue.Items() {
		w.queue.Release()

		if ctx.Err() != nil {
			w.abandon(jobID)
			continue
		}

		w.logger.Debug("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", jobID),
		)
		w.processJob(ctx, jobID, workerName)
	}

	w.logger.Debug("Worker goroutine stopping - queue closed",
		slog.String("worker_name", workerName),
	)
}

// abandon fails a queued job that will never run
func (w *Worker) abandon(jobID string) {
	job, err := w.storage.Get(jobID)
	if err != nil {
		w.logger.Error("Failed to load abandoned job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	w.finish(job, nil, errSchedulerStopped)
}
