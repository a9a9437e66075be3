package storage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/imaging"
	"github.com/google/uuid"
)

// Storage is the in-memory job store shared by the scheduler and the API.
// All methods are safe for concurrent use and return value snapshots, so
// callers never observe a job halfway through an update.
type Storage struct {
	mu     sync.RWMutex
	jobs   map[string]*domain.Job
	order  []string // submission order
	seq    uint64
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates an empty Storage
func NewStorage(logger *slog.Logger) *Storage {
	return &Storage{
		jobs:   make(map[string]*domain.Job),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new QUEUED job and returns its snapshot
func (s *Storage) Create(op domain.Operation, img *imaging.Image, params domain.Params) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	job := &domain.Job{
		ID:          uuid.NewString(),
		Seq:         s.seq,
		Operation:   op,
		Status:      domain.JobStatusQueued,
		Params:      params,
		Input:       img,
		SubmittedAt: s.now(),
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	s.logger.Debug("Job created",
		slog.String("job_id", job.ID),
		slog.String("operation", string(op)),
	)

	return *job
}

// Get retrieves a job snapshot by its ID
func (s *Storage) Get(jobID string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return *job, nil
}

// ClaimJob moves a queued job to PROCESSING on behalf of workerName.
// It fails with ErrInvalidTransition if the job is no longer queued.
func (s *Storage) ClaimJob(jobID, workerName string) (domain.Job, error) {
	job, err := s.Transition(jobID, domain.JobStatusProcessing, nil, nil, workerName)
	if err != nil {
		return domain.Job{}, err
	}

	s.logger.Debug("Job claimed",
		slog.String("job_id", jobID),
		slog.String("worker_name", workerName),
	)
	return job, nil
}

// Transition atomically moves a job to status `to` if the state machine allows
// it from the job's current status. A result may only accompany COMPLETED and
// an error only FAILED. The input image is released once the job is terminal.
func (s *Storage) Transition(jobID string, to domain.Status, result *domain.Result, jobErr *domain.JobError, workerName string) (domain.Job, error) {
	if result != nil && to != domain.JobStatusCompleted {
		return domain.Job{}, fmt.Errorf("%w: result given for %s", domain.ErrInvalidTransition, to)
	}
	if jobErr != nil && to != domain.JobStatusFailed {
		return domain.Job{}, fmt.Errorf("%w: error given for %s", domain.ErrInvalidTransition, to)
	}
	if to == domain.JobStatusCompleted && result == nil {
		return domain.Job{}, fmt.Errorf("%w: COMPLETED requires a result", domain.ErrInvalidTransition)
	}
	if to == domain.JobStatusFailed && jobErr == nil {
		return domain.Job{}, fmt.Errorf("%w: FAILED requires an error", domain.ErrInvalidTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if !domain.CanTransition(job.Status, to) {
		return domain.Job{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, to)
	}

	now := s.now()
	job.Status = to
	if workerName != "" {
		job.WorkerName = workerName
	}

	switch to {
	case domain.JobStatusProcessing:
		job.StartedAt = &now
	case domain.JobStatusCompleted:
		job.Result = result
		job.CompletedAt = &now
		job.Input = nil
	case domain.JobStatusFailed:
		job.Error = jobErr
		job.CompletedAt = &now
		job.Input = nil
	}

	return *job, nil
}

// ListByStatus returns the IDs of jobs in status, in submission order
func (s *Storage) ListByStatus(status domain.Status) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for _, id := range s.order {
		if s.jobs[id].Status == status {
			ids = append(ids, id)
		}
	}
	return ids
}

// JobFilter selects jobs for List
type JobFilter struct {
	Status    domain.Status
	Operation domain.Operation
	PageSize  int
	Cursor    *JobCursor
}

// JobCursor marks the last job of the previous page
type JobCursor struct {
	Seq   uint64
	JobID string
}

// List returns matching jobs newest first. It fetches one job beyond
// PageSize so callers can tell whether another page exists.
func (s *Storage) List(filter JobFilter) []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.Job, 0, filter.PageSize+1)
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]

		if filter.Cursor != nil && job.Seq >= filter.Cursor.Seq {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Operation != "" && job.Operation != filter.Operation {
			continue
		}

		jobs = append(jobs, *job)
		if filter.PageSize > 0 && len(jobs) > filter.PageSize {
			break
		}
	}
	return jobs
}

// Delete removes a terminal job
func (s *Storage) Delete(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", domain.ErrJobNotTerminal, jobID, job.Status)
	}

	delete(s.jobs, jobID)
	for i, id := range s.order {
		if id == jobID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Info("Job deleted",
		slog.String("job_id", jobID),
	)
	return nil
}

// Count returns the number of stored jobs
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
