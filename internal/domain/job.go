package domain

import (
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/imaging"
)

// Options are the arguments a caller supplies with a job. A nil field takes
// the service default; a set field is used as given, zero included.
type Options struct {
	TargetRatio  *float64
	FeatureCount *int
	Seed         *uint64
}

// Params are the resolved arguments stored on a job. Only the fields used by
// the job's operation are set.
type Params struct {
	TargetRatio  float64 `json:"target_ratio,omitempty"`
	FeatureCount int     `json:"feature_count,omitempty"`
	Seed         uint64  `json:"seed,omitempty"`
}

// Result holds the output of a completed job. Only the fields of the job's
// operation are set.
type Result struct {
	Edges         *imaging.Image           `json:"edges,omitempty"`
	EdgeQuality   float64                  `json:"edge_quality,omitempty"`
	Compressed    *imaging.CompressedImage `json:"compressed,omitempty"`
	AchievedRatio float64                  `json:"achieved_ratio,omitempty"`
	QubitsUsed    int                      `json:"qubits_used,omitempty"`
	Features      []float64                `json:"features,omitempty"`
	Spectrum      *imaging.Spectrum        `json:"spectrum,omitempty"`
}

// Job is one image-processing request and its lifecycle record.
type Job struct {
	ID          string         `json:"job_id"`
	Seq         uint64         `json:"-"`
	Operation   Operation      `json:"operation"`
	Status      Status         `json:"status"`
	Params      Params         `json:"params"`
	Input       *imaging.Image `json:"-"`
	Result      *Result        `json:"result,omitempty"`
	Error       *JobError      `json:"error,omitempty"`
	WorkerName  string         `json:"worker_name,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ProcessingTime is the time spent between leaving the queue and reaching a
// terminal state. It is zero for jobs that never started.
func (j Job) ProcessingTime() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// QueueWait is the time the job spent queued.
func (j Job) QueueWait() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	return j.StartedAt.Sub(j.SubmittedAt)
}

// CanTransition enforces the job state machine:
// QUEUED → PROCESSING → {COMPLETED, FAILED}, plus QUEUED → FAILED for jobs
// rejected before they ever run.
func CanTransition(from, to Status) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// JobEvent is emitted once per job when it reaches a terminal state.
type JobEvent struct {
	JobID          string        `json:"job_id" db:"job_id"`
	Operation      Operation     `json:"operation" db:"operation"`
	Status         Status        `json:"status" db:"status"`
	ErrorKind      ErrorKind     `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage   string        `json:"error_message,omitempty" db:"error_message"`
	WorkerName     string        `json:"worker_name,omitempty" db:"worker_name"`
	SubmittedAt    time.Time     `json:"submitted_at" db:"submitted_at"`
	CompletedAt    time.Time     `json:"completed_at" db:"completed_at"`
	QueueWait      time.Duration `json:"queue_wait_ns" db:"-"`
	ProcessingTime time.Duration `json:"processing_time_ns" db:"-"`
}

// Event builds the terminal event for j.
func (j Job) Event() JobEvent {
	ev := JobEvent{
		JobID:          j.ID,
		Operation:      j.Operation,
		Status:         j.Status,
		WorkerName:     j.WorkerName,
		SubmittedAt:    j.SubmittedAt,
		QueueWait:      j.QueueWait(),
		ProcessingTime: j.ProcessingTime(),
	}
	if j.CompletedAt != nil {
		ev.CompletedAt = *j.CompletedAt
	}
	if j.Error != nil {
		ev.ErrorKind = j.Error.Kind
		ev.ErrorMessage = j.Error.Message
	}
	return ev
}
