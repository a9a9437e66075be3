package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(a *Aggregator, op domain.Operation, terminal domain.Status, d time.Duration) {
	a.Observe(Transition{Operation: op, To: domain.JobStatusQueued})
	a.Observe(Transition{Operation: op, From: domain.JobStatusQueued, To: domain.JobStatusProcessing})
	a.Observe(Transition{Operation: op, From: domain.JobStatusProcessing, To: terminal, ProcessingTime: d})
}

func TestAggregator_Counts(t *testing.T) {
	a := NewAggregator(nil)

	run(a, domain.OpEdgeDetection, domain.JobStatusCompleted, 100*time.Millisecond)
	run(a, domain.OpEdgeDetection, domain.JobStatusFailed, 300*time.Millisecond)
	run(a, domain.OpCompression, domain.JobStatusCompleted, 200*time.Millisecond)

	snap := a.Snapshot()
	assert.Equal(t, int64(3), snap.Submitted)
	assert.Equal(t, int64(2), snap.Completed)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Zero(t, snap.Queued)
	assert.Zero(t, snap.Processing)
	assert.Equal(t, 600*time.Millisecond, snap.TotalProcessingTime)
	assert.Equal(t, 200*time.Millisecond, snap.AverageProcessingTime)
	require.NotNil(t, snap.LastProcessedAt)

	edge := snap.ByOperation[domain.OpEdgeDetection]
	assert.Equal(t, int64(1), edge.Completed)
	assert.Equal(t, int64(1), edge.Failed)
	assert.Equal(t, 200*time.Millisecond, edge.AverageProcessingTime)
}

func TestAggregator_GaugesAndFailFromQueue(t *testing.T) {
	a := NewAggregator(func() int { return 7 })

	a.Observe(Transition{Operation: domain.OpCompression, To: domain.JobStatusQueued})
	a.Observe(Transition{Operation: domain.OpCompression, To: domain.JobStatusQueued})
	a.Observe(Transition{Operation: domain.OpCompression, From: domain.JobStatusQueued, To: domain.JobStatusProcessing})

	snap := a.Snapshot()
	assert.Equal(t, int64(1), snap.Queued)
	assert.Equal(t, int64(1), snap.Processing)
	assert.Equal(t, 7, snap.QueueDepth)

	a.Observe(Transition{Operation: domain.OpCompression, From: domain.JobStatusQueued, To: domain.JobStatusFailed})
	snap = a.Snapshot()
	assert.Zero(t, snap.Queued)
	assert.Equal(t, int64(1), snap.Failed)
}

func TestAggregator_AverageIgnoresJobsThatNeverRan(t *testing.T) {
	a := NewAggregator(nil)

	run(a, domain.OpCompression, domain.JobStatusCompleted, 400*time.Millisecond)
	run(a, domain.OpCompression, domain.JobStatusFailed, 200*time.Millisecond)

	// rejected at submission
	for i := 0; i < 5; i++ {
		a.Observe(Transition{Operation: domain.OpCompression, To: domain.JobStatusQueued})
		a.Observe(Transition{Operation: domain.OpCompression, From: domain.JobStatusQueued, To: domain.JobStatusFailed})
	}

	snap := a.Snapshot()
	assert.Equal(t, int64(6), snap.Failed)
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, 600*time.Millisecond, snap.TotalProcessingTime)
	assert.Equal(t, 300*time.Millisecond, snap.AverageProcessingTime)

	op := snap.ByOperation[domain.OpCompression]
	assert.Equal(t, int64(2), op.Processed)
	assert.Equal(t, int64(6), op.Failed)
	assert.Equal(t, 300*time.Millisecond, op.AverageProcessingTime)
}

func TestAggregator_NoAverageWithoutProcessedJobs(t *testing.T) {
	a := NewAggregator(nil)
	a.Observe(Transition{Operation: domain.OpEdgeDetection, To: domain.JobStatusQueued})
	a.Observe(Transition{Operation: domain.OpEdgeDetection, From: domain.JobStatusQueued, To: domain.JobStatusFailed})

	snap := a.Snapshot()
	assert.Zero(t, snap.Processed)
	assert.Zero(t, snap.AverageProcessingTime)
	assert.Equal(t, int64(1), snap.ByOperation[domain.OpEdgeDetection].Failed)
}

func TestAggregator_Reject(t *testing.T) {
	a := NewAggregator(nil)
	a.Reject()
	a.Reject()
	assert.Equal(t, int64(2), a.Snapshot().Rejected)
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	a := NewAggregator(nil)
	run(a, domain.OpFrequencyAnalysis, domain.JobStatusCompleted, time.Millisecond)

	snap := a.Snapshot()
	snap.ByOperation[domain.OpFrequencyAnalysis] = OperationStats{Completed: 99}

	assert.Equal(t, int64(1), a.Snapshot().ByOperation[domain.OpFrequencyAnalysis].Completed)
}

func TestAggregator_Concurrent(t *testing.T) {
	a := NewAggregator(nil)
	const k, f = 200, 100

	var wg sync.WaitGroup
	for i := 0; i < k+f; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			terminal := domain.JobStatusCompleted
			if i >= k {
				terminal = domain.JobStatusFailed
			}
			run(a, domain.OpFeatureExtraction, terminal, time.Microsecond)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			snap := a.Snapshot()
			op := snap.ByOperation[domain.OpFeatureExtraction]
			assert.Equal(t, snap.Completed, op.Completed)
			assert.Equal(t, snap.Failed, op.Failed)
		}
	}()

	wg.Wait()
	<-done

	snap := a.Snapshot()
	assert.Equal(t, int64(k), snap.Completed)
	assert.Equal(t, int64(f), snap.Failed)
	assert.Equal(t, int64(k+f), snap.Submitted)
	assert.Equal(t, int64(k+f), snap.Processed)
}
