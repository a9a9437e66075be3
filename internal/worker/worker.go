package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/imaging"
	"github.com/cuongbtq/quantum-imaging/internal/stats"
	"github.com/cuongbtq/quantum-imaging/internal/worker/storage"
)

// Default worker settings
const (
	DefaultConcurrency   = 4
	DefaultQueueCapacity = 100
	DefaultJobTimeout    = 30 * time.Second
	DefaultSinkTimeout   = 5 * time.Second
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Storage       *storage.Storage
	Executor      Executor
	Sinks         []Sink
	WorkerID      string
	Concurrency   int
	QueueCapacity int
	JobTimeout    time.Duration
	SinkTimeout   time.Duration
	// Defaults fills the options a submission leaves unset. Zero fields
	// fall back to the imaging defaults.
	Defaults domain.Params
}

// Worker owns the job queue and the pool of goroutines processing it
type Worker struct {
	logger      *slog.Logger
	storage     *storage.Storage
	stats       *stats.Aggregator
	queue       *Queue
	executor    Executor
	sinks       []Sink
	workerID    string
	concurrency int
	jobTimeout  time.Duration
	sinkTimeout time.Duration
	defaults    domain.Params

	intake   sync.RWMutex
	closed   bool
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		logger:      logger,
		storage:     cfg.Storage,
		executor:    cfg.Executor,
		sinks:       cfg.Sinks,
		workerID:    cfg.WorkerID,
		concurrency: cfg.Concurrency,
		jobTimeout:  cfg.JobTimeout,
		sinkTimeout: cfg.SinkTimeout,
		defaults:    cfg.Defaults,
	}

	if w.storage == nil {
		w.storage = storage.NewStorage(logger)
	}
	if w.executor == nil {
		w.executor = NewTransformExecutor(imaging.DefaultEdgeOptions(), imaging.DefaultCompressionOptions().BlockSize)
	}
	if w.workerID == "" {
		w.workerID = "worker"
	}
	if w.concurrency <= 0 {
		w.concurrency = DefaultConcurrency
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = DefaultJobTimeout
	}
	if w.sinkTimeout <= 0 {
		w.sinkTimeout = DefaultSinkTimeout
	}
	if w.defaults.TargetRatio == 0 {
		w.defaults.TargetRatio = imaging.DefaultCompressionOptions().TargetRatio
	}
	if w.defaults.FeatureCount == 0 {
		w.defaults.FeatureCount = imaging.DefaultFeatureOptions().Count
	}
	if w.defaults.Seed == 0 {
		w.defaults.Seed = imaging.DefaultFeatureOptions().Seed
	}

	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	w.queue = NewQueue(capacity)
	w.stats = stats.NewAggregator(w.queue.Len)

	return w
}

// Start spawns the worker pool. It returns immediately; call Stop to drain
// and shut the pool down.
func (w *Worker) Start(ctx context.Context) error {
	w.intake.Lock()
	defer w.intake.Unlock()

	if w.closed {
		return domain.ErrShuttingDown
	}
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("queue_capacity", w.queue.Cap()),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	ctx, w.cancel = context.WithCancel(ctx)
	w.spawnWorkerPool(ctx)
	return nil
}

// Submit stores a new job and enqueues it.
//
// Jobs with invalid parameters or input are stored and failed straight away
// and never enqueued; the returned job is already FAILED. ErrQueueFull and
// ErrShuttingDown are returned without creating a job.
func (w *Worker) Submit(op domain.Operation, img *imaging.Image, opts domain.Options) (domain.Job, error) {
	w.intake.RLock()
	defer w.intake.RUnlock()

	if w.closed {
		return domain.Job{}, domain.ErrShuttingDown
	}

	params := w.resolve(op, opts)
	invalid := validate(op, img, params)

	if invalid == nil && !w.queue.TryReserve() {
		w.stats.Reject()
		w.logger.Warn("Job rejected - queue is full",
			slog.String("operation", string(op)),
			slog.Int("queue_capacity", w.queue.Cap()),
		)
		return domain.Job{}, fmt.Errorf("%w: capacity %d", domain.ErrQueueFull, w.queue.Cap())
	}

	job := w.storage.Create(op, img, params)
	w.stats.Observe(stats.Transition{Operation: op, To: domain.JobStatusQueued, At: job.SubmittedAt})

	if invalid != nil {
		w.logger.Info("Job rejected at submission",
			slog.String("job_id", job.ID),
			slog.String("operation", string(op)),
			slog.String("error", invalid.Error()),
		)
		return w.finish(job, nil, invalid), nil
	}

	w.queue.Push(job.ID)
	w.logger.Debug("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("operation", string(op)),
		slog.Int("queue_depth", w.queue.Len()),
	)
	return job, nil
}

// Get returns a snapshot of a job
func (w *Worker) Get(jobID string) (domain.Job, error) {
	return w.storage.Get(jobID)
}

// List returns a page of jobs, newest first
func (w *Worker) List(filter storage.JobFilter) []domain.Job {
	return w.storage.List(filter)
}

// Delete removes a terminal job
func (w *Worker) Delete(jobID string) error {
	return w.storage.Delete(jobID)
}

// Stats returns a statistics snapshot
func (w *Worker) Stats() stats.Statistics {
	return w.stats.Snapshot()
}

// Stop stops accepting jobs and waits for the queue to drain. If ctx expires
// first, in-flight and still queued jobs are failed and Stop returns ctx's
// error once every worker goroutine has exited.
func (w *Worker) Stop(ctx context.Context) error {
	var err error
	w.stopOnce.Do(func() {
		err = w.stop(ctx)
	})
	return err
}

func (w *Worker) stop(ctx context.Context) error {
	w.logger.Info("Stopping worker...",
		slog.Int("queue_depth", w.queue.Len()),
	)

	w.intake.Lock()
	w.closed = true
	w.queue.Close()
	w.intake.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("Shutdown deadline reached, failing remaining jobs",
			slog.Int("queue_depth", w.queue.Len()),
		)
		err = ctx.Err()
	}

	if w.cancel != nil {
		w.cancel()
	}
	<-done

	// Left over only when the pool never started.
	for jobID := range w.queue.Items() {
		w.queue.Release()
		w.abandon(jobID)
	}

	w.logger.Info("Worker stopped")
	return err
}

// resolve keeps the options the operation uses and fills unset ones from
// the defaults. Explicit values, zero included, are left for validate.
func (w *Worker) resolve(op domain.Operation, opts domain.Options) domain.Params {
	var params domain.Params
	switch op {
	case domain.OpCompression:
		params.TargetRatio = w.defaults.TargetRatio
		if opts.TargetRatio != nil {
			params.TargetRatio = *opts.TargetRatio
		}
	case domain.OpFeatureExtraction:
		params.FeatureCount = w.defaults.FeatureCount
		if opts.FeatureCount != nil {
			params.FeatureCount = *opts.FeatureCount
		}
		params.Seed = w.defaults.Seed
		if opts.Seed != nil {
			params.Seed = *opts.Seed
		}
	}
	return params
}

// validate checks everything that can be known before a job runs
func validate(op domain.Operation, img *imaging.Image, params domain.Params) error {
	if !slices.Contains(domain.Operations, op) {
		return fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidParameter, op)
	}
	if err := img.Validate(); err != nil {
		return err
	}

	switch op {
	case domain.OpCompression:
		if !(params.TargetRatio > 0 && params.TargetRatio < 1) {
			return fmt.Errorf("%w: target ratio %v must be between 0 and 1", domain.ErrInvalidParameter, params.TargetRatio)
		}
	case domain.OpFeatureExtraction:
		if params.FeatureCount <= 0 || params.FeatureCount > img.PixelCount() {
			return fmt.Errorf("%w: feature count %d must be in [1, %d]", domain.ErrInvalidParameter, params.FeatureCount, img.PixelCount())
		}
	}
	return nil
}
