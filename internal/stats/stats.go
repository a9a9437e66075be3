// Package stats aggregates process-wide job statistics.
//
// The Aggregator is created once at startup and lives until the process exits.
// Every mutation goes through Observe or Reject under one lock, and Snapshot
// copies all counters under the same lock, so a snapshot never mixes values
// from before and after a single transition.
package stats

import (
	"sync"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
)

// OperationStats holds the counters of a single operation.
type OperationStats struct {
	Completed             int64         `json:"completed"`
	Failed                int64         `json:"failed"`
	Processed             int64         `json:"processed"`
	TotalProcessingTime   time.Duration `json:"total_processing_time"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
}

// Statistics is a point-in-time copy of the aggregate counters.
type Statistics struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Submitted  int64 `json:"submitted"`
	Rejected   int64 `json:"rejected"`
	// Processed counts terminal jobs that ran on a worker; the averages are
	// taken over these only.
	Processed             int64                               `json:"processed"`
	ByOperation           map[domain.Operation]OperationStats `json:"by_operation"`
	TotalProcessingTime   time.Duration                       `json:"total_processing_time"`
	AverageProcessingTime time.Duration                       `json:"average_processing_time"`
	QueueDepth            int                                 `json:"queue_depth"`
	LastProcessedAt       *time.Time                          `json:"last_processed_at,omitempty"`
	StartedAt             time.Time                           `json:"started_at"`
}

// Transition describes one job status change. From is empty for a newly
// created job.
type Transition struct {
	Operation      domain.Operation
	From           domain.Status
	To             domain.Status
	ProcessingTime time.Duration
	At             time.Time
}

// Aggregator accumulates Statistics.
type Aggregator struct {
	mu         sync.Mutex
	state      Statistics
	queueDepth func() int
}

// NewAggregator creates an Aggregator. queueDepth, if non-nil, is sampled on
// every Snapshot.
func NewAggregator(queueDepth func() int) *Aggregator {
	return &Aggregator{
		state: Statistics{
			ByOperation: make(map[domain.Operation]OperationStats),
			StartedAt:   time.Now().UTC(),
		},
		queueDepth: queueDepth,
	}
}

// Observe applies a status change to the counters.
func (a *Aggregator) Observe(tr Transition) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.state
	switch tr.From {
	case "":
		s.Submitted++
	case domain.JobStatusQueued:
		s.Queued--
	case domain.JobStatusProcessing:
		s.Processing--
	}

	switch tr.To {
	case domain.JobStatusQueued:
		s.Queued++
	case domain.JobStatusProcessing:
		s.Processing++
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		a.recordTerminal(tr)
	}
}

func (a *Aggregator) recordTerminal(tr Transition) {
	s := &a.state
	op := s.ByOperation[tr.Operation]

	if tr.To == domain.JobStatusCompleted {
		s.Completed++
		op.Completed++
	} else {
		s.Failed++
		op.Failed++
	}

	// Jobs failed at submission or abandoned in the queue never ran
	if tr.From == domain.JobStatusProcessing {
		s.Processed++
		s.TotalProcessingTime += tr.ProcessingTime
		s.AverageProcessingTime = s.TotalProcessingTime / time.Duration(s.Processed)

		op.Processed++
		op.TotalProcessingTime += tr.ProcessingTime
		op.AverageProcessingTime = op.TotalProcessingTime / time.Duration(op.Processed)
	}
	s.ByOperation[tr.Operation] = op

	at := tr.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.LastProcessedAt = &at
}

// Reject counts a submission refused for lack of queue capacity.
func (a *Aggregator) Reject() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Rejected++
}

// Snapshot returns a consistent copy of the counters.
func (a *Aggregator) Snapshot() Statistics {
	a.mu.Lock()
	snap := a.state
	snap.ByOperation = make(map[domain.Operation]OperationStats, len(a.state.ByOperation))
	for op, s := range a.state.ByOperation {
		snap.ByOperation[op] = s
	}
	if a.state.LastProcessedAt != nil {
		last := *a.state.LastProcessedAt
		snap.LastProcessedAt = &last
	}
	a.mu.Unlock()

	if a.queueDepth != nil {
		snap.QueueDepth = a.queueDepth()
	}
	return snap
}
