package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/stats"
)

// processJob claims a queued job, runs it under the job timeout and records
// the outcome
func (w *Worker) processJob(ctx context.Context, jobID, workerName string) {
	job, err := w.storage.ClaimJob(jobID, workerName)
	if err != nil {
		w.logger.Warn("Failed to claim job, skipping",
			slog.String("job_id", jobID),
			slog.String("worker_name", workerName),
			slog.String("error", err.Error()),
		)
		return
	}
	w.stats.Observe(stats.Transition{
		Operation: job.Operation,
		From:      domain.JobStatusQueued,
		To:        domain.JobStatusProcessing,
	})

	w.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("operation", string(job.Operation)),
		slog.String("worker_name", workerName),
		slog.Duration("queue_wait", job.QueueWait()),
	)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, err := w.execute(jobCtx, job)
	w.finish(job, result, err)
}

type outcome struct {
	result *domain.Result
	err    error
}

// execute runs the executor in its own goroutine so a transform that ignores
// its context cannot hold the worker past the deadline. A timed out transform
// keeps running in the background until it returns; its outcome is dropped.
func (w *Worker) execute(ctx context.Context, job domain.Job) (*domain.Result, error) {
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Transform panicked",
					slog.String("job_id", job.ID),
					slog.String("operation", string(job.Operation)),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				done <- outcome{err: domain.NewInternalFault(r)}
			}
		}()

		result, err := w.executor.Execute(ctx, job)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && out.result == nil {
			return nil, domain.NewInternalFault("executor returned no result")
		}
		return out.result, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: limit %s", domain.ErrTimeout, w.jobTimeout)
		}
		return nil, errSchedulerStopped
	}
}

// finish moves a job to its terminal state, records statistics and notifies
// the sinks. It returns the terminal snapshot, or job unchanged if the
// transition was refused.
func (w *Worker) finish(job domain.Job, result *domain.Result, err error) domain.Job {
	var (
		updated domain.Job
		terr    error
	)

	if err != nil {
		jobErr := domain.Classify(err)
		if jobErr.Kind == domain.KindInternalFault {
			w.logger.Error("Job failed with internal fault",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		updated, terr = w.storage.Transition(job.ID, domain.JobStatusFailed, nil, jobErr, "")
	} else {
		updated, terr = w.storage.Transition(job.ID, domain.JobStatusCompleted, result, nil, "")
	}

	if terr != nil {
		w.logger.Error("Failed to record job outcome",
			slog.String("job_id", job.ID),
			slog.String("error", terr.Error()),
		)
		return job
	}

	tr := stats.Transition{
		Operation:      updated.Operation,
		From:           job.Status,
		To:             updated.Status,
		ProcessingTime: updated.ProcessingTime(),
	}
	if updated.CompletedAt != nil {
		tr.At = *updated.CompletedAt
	}
	w.stats.Observe(tr)

	if updated.Status == domain.JobStatusCompleted {
		w.logger.Info("Job completed successfully",
			slog.String("job_id", updated.ID),
			slog.String("operation", string(updated.Operation)),
			slog.Duration("processing_time", updated.ProcessingTime()),
		)
	} else {
		w.logger.Warn("Job failed",
			slog.String("job_id", updated.ID),
			slog.String("operation", string(updated.Operation)),
			slog.String("error_kind", string(updated.Error.Kind)),
			slog.String("error", updated.Error.Message),
		)
	}

	w.notify(updated)
	return updated
}

// notify hands the terminal event to every sink. Sink failures are logged
// and do not affect the job.
func (w *Worker) notify(job domain.Job) {
	if len(w.sinks) == 0 {
		return
	}

	ev := job.Event()
	for _, sink := range w.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), w.sinkTimeout)
		if err := sink.Send(ctx, ev); err != nil {
			w.logger.Warn("Failed to deliver job event",
				slog.String("job_id", job.ID),
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}
