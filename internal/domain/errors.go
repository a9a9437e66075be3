package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/quantum-imaging/internal/imaging"
)

// ErrorKind classifies why a job failed or a call was rejected.
type ErrorKind string

// Error kinds
const (
	KindInvalidParameter ErrorKind = "InvalidParameter"
	KindUnsupportedInput ErrorKind = "UnsupportedInput"
	KindQueueFull        ErrorKind = "QueueFull"
	KindNotFound         ErrorKind = "NotFound"
	KindTimeout          ErrorKind = "Timeout"
	KindInternalFault    ErrorKind = "InternalFault"
)

var (
	// ErrInvalidParameter is returned for out-of-range operation arguments
	ErrInvalidParameter = imaging.ErrInvalidParameter

	// ErrUnsupportedInput is returned for empty or malformed images
	ErrUnsupportedInput = imaging.ErrUnsupportedInput

	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueFull is returned when a submission exceeds the queue capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrTimeout is returned when a transform exceeds its time budget
	ErrTimeout = errors.New("transform timed out")

	// ErrInternalFault wraps unexpected transform faults, including panics
	ErrInternalFault = errors.New("internal fault")

	// ErrInvalidTransition is returned when a status change breaks the job state machine
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrJobNotTerminal is returned when deleting a job that is still queued or processing
	ErrJobNotTerminal = errors.New("job is not in a terminal state")

	// ErrShuttingDown is returned for submissions after the scheduler stopped accepting work
	ErrShuttingDown = errors.New("scheduler is shutting down")
)

// JobError is the failure recorded on a job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *JobError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewInternalFault wraps an unexpected failure, such as a recovered panic value.
func NewInternalFault(detail any) error {
	return fmt.Errorf("%w: %v", ErrInternalFault, detail)
}

// internalFaultMessage is what callers see for InternalFault; the detail goes
// to the logs only.
const internalFaultMessage = "unexpected fault while processing job"

// Classify maps an error to the kind recorded on a failed job.
func Classify(err error) *JobError {
	var jobErr *JobError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &jobErr):
		return &JobError{Kind: jobErr.Kind, Message: jobErr.Message}
	case errors.Is(err, ErrInvalidParameter):
		return &JobError{Kind: KindInvalidParameter, Message: err.Error()}
	case errors.Is(err, ErrUnsupportedInput):
		return &JobError{Kind: KindUnsupportedInput, Message: err.Error()}
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &JobError{Kind: KindTimeout, Message: "transform exceeded its time budget"}
	case errors.Is(err, ErrQueueFull):
		return &JobError{Kind: KindQueueFull, Message: err.Error()}
	case errors.Is(err, ErrJobNotFound):
		return &JobError{Kind: KindNotFound, Message: err.Error()}
	default:
		return &JobError{Kind: KindInternalFault, Message: internalFaultMessage}
	}
}
