package domain

import (
	"fmt"
	"strings"

	"github.com/cuongbtq/quantum-imaging/internal/imaging"
)

// Status is the lifecycle state of a job.
type Status string

// Job status constants
const (
	JobStatusQueued     Status = "QUEUED"
	JobStatusProcessing Status = "PROCESSING"
	JobStatusCompleted  Status = "COMPLETED"
	JobStatusFailed     Status = "FAILED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed}

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", imaging.ErrInvalidParameter, s)
}

// Operation names one transform of the imaging library.
type Operation string

// Supported operations
const (
	OpEdgeDetection     Operation = "edge_detection"
	OpCompression       Operation = "compression"
	OpFeatureExtraction Operation = "feature_extraction"
	OpFrequencyAnalysis Operation = "frequency_analysis"
)

// Operations lists every supported operation.
var Operations = []Operation{OpEdgeDetection, OpCompression, OpFeatureExtraction, OpFrequencyAnalysis}

// ParseOperation accepts any letter case and dashes in place of underscores.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: unknown operation %q", imaging.ErrInvalidParameter, s)
}
