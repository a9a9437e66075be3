package archive

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	execs   []string
	records []jobRecord
	seen    map[string]bool
	err     error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, _ ...any) error {
	f.execs = append(f.execs, query)
	return f.err
}

func (f *fakeDB) NamedExecContext(_ context.Context, _ string, arg any) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	rec := arg.(jobRecord)
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[rec.JobID] {
		return 0, nil
	}
	f.seen[rec.JobID] = true
	f.records = append(f.records, rec)
	return 1, nil
}

func newTestSink(db Database) *Sink {
	return NewSink(db, slog.New(slog.DiscardHandler))
}

func TestNewJobRecord(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	completed := submitted.Add(2 * time.Second)

	tests := []struct {
		name  string
		event domain.JobEvent
		check func(t *testing.T, rec jobRecord)
	}{
		{
			name: "completed job",
			event: domain.JobEvent{
				JobID:          "8d0c6f0e-6a3b-4c39-8f8e-2b7f1f1f0a01",
				Operation:      domain.OpCompression,
				Status:         domain.JobStatusCompleted,
				WorkerName:     "imaging-worker-2",
				SubmittedAt:    submitted,
				CompletedAt:    completed,
				QueueWait:      250 * time.Millisecond,
				ProcessingTime: 1750 * time.Millisecond,
			},
			check: func(t *testing.T, rec jobRecord) {
				assert.Equal(t, "compression", rec.Operation)
				assert.Equal(t, "COMPLETED", rec.Status)
				assert.False(t, rec.ErrorKind.Valid)
				assert.False(t, rec.ErrorMessage.Valid)
				assert.Equal(t, "imaging-worker-2", rec.WorkerName.String)
				assert.Equal(t, time.UTC, rec.SubmittedAt.Location())
				assert.True(t, rec.SubmittedAt.Equal(submitted))
				assert.Equal(t, int64(250), rec.QueueWaitMs)
				assert.Equal(t, int64(1750), rec.ProcessingTimeMs)
			},
		},
		{
			name: "failed at submission",
			event: domain.JobEvent{
				JobID:        "8d0c6f0e-6a3b-4c39-8f8e-2b7f1f1f0a02",
				Operation:    domain.OpFeatureExtraction,
				Status:       domain.JobStatusFailed,
				ErrorKind:    domain.KindInvalidParameter,
				ErrorMessage: "feature count 0 out of range",
				SubmittedAt:  submitted,
				CompletedAt:  submitted,
			},
			check: func(t *testing.T, rec jobRecord) {
				assert.Equal(t, "FAILED", rec.Status)
				assert.Equal(t, "InvalidParameter", rec.ErrorKind.String)
				assert.True(t, rec.ErrorKind.Valid)
				assert.Equal(t, "feature count 0 out of range", rec.ErrorMessage.String)
				assert.False(t, rec.WorkerName.Valid)
				assert.Zero(t, rec.ProcessingTimeMs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newJobRecord(tt.event)
			assert.Equal(t, tt.event.JobID, rec.JobID)
			tt.check(t, rec)
		})
	}
}

func TestSink_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	sink := newTestSink(db)

	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS job_history")

	db.err = errors.New("permission denied")
	err := sink.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSink_Send(t *testing.T) {
	db := &fakeDB{}
	sink := newTestSink(db)
	assert.Equal(t, "archive", sink.Name())

	ev := domain.JobEvent{
		JobID:     "8d0c6f0e-6a3b-4c39-8f8e-2b7f1f1f0a03",
		Operation: domain.OpEdgeDetection,
		Status:    domain.JobStatusCompleted,
	}

	require.NoError(t, sink.Send(context.Background(), ev))
	// replay is ignored
	require.NoError(t, sink.Send(context.Background(), ev))
	assert.Len(t, db.records, 1)

	ev.JobID = "8d0c6f0e-6a3b-4c39-8f8e-2b7f1f1f0a04"
	ev.Status = domain.JobStatusProcessing
	err := sink.Send(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not terminal")
	assert.Len(t, db.records, 1)

	db.err = errors.New("connection refused")
	ev.Status = domain.JobStatusFailed
	err = sink.Send(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ev.JobID)
}

func TestInsertQueryBindsEveryColumn(t *testing.T) {
	for _, col := range []string{
		"job_id", "operation", "status", "error_kind", "error_message", "worker_name",
		"submitted_at", "completed_at", "queue_wait_ms", "processing_time_ms",
	} {
		assert.Contains(t, insertQuery, ":"+col, col)
		assert.Contains(t, schemaQuery, col, col)
	}
}
