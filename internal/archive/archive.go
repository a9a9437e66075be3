// Package archive writes terminal job events to a PostgreSQL history table.
// The table is write-only from the service's point of view and is never read
// back to restore jobs.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
)

// Database is the subset of postgresql.Client the archive needs.
type Database interface {
	ExecContext(ctx context.Context, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (int64, error)
}

const schemaQuery = `
	CREATE TABLE IF NOT EXISTS job_history (
		job_id             UUID PRIMARY KEY,
		operation          TEXT NOT NULL,
		status             TEXT NOT NULL,
		error_kind         TEXT,
		error_message      TEXT,
		worker_name        TEXT,
		submitted_at       TIMESTAMPTZ NOT NULL,
		completed_at       TIMESTAMPTZ NOT NULL,
		queue_wait_ms      BIGINT NOT NULL,
		processing_time_ms BIGINT NOT NULL,
		archived_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// A job reaches a terminal state once, so a replayed event is a no-op.
const insertQuery = `
	INSERT INTO job_history (
		job_id, operation, status, error_kind, error_message, worker_name,
		submitted_at, completed_at, queue_wait_ms, processing_time_ms
	) VALUES (
		:job_id, :operation, :status, :error_kind, :error_message, :worker_name,
		:submitted_at, :completed_at, :queue_wait_ms, :processing_time_ms
	)
	ON CONFLICT (job_id) DO NOTHING
`

type jobRecord struct {
	JobID            string         `db:"job_id"`
	Operation        string         `db:"operation"`
	Status           string         `db:"status"`
	ErrorKind        sql.NullString `db:"error_kind"`
	ErrorMessage     sql.NullString `db:"error_message"`
	WorkerName       sql.NullString `db:"worker_name"`
	SubmittedAt      time.Time      `db:"submitted_at"`
	CompletedAt      time.Time      `db:"completed_at"`
	QueueWaitMs      int64          `db:"queue_wait_ms"`
	ProcessingTimeMs int64          `db:"processing_time_ms"`
}

func newJobRecord(ev domain.JobEvent) jobRecord {
	return jobRecord{
		JobID:            ev.JobID,
		Operation:        string(ev.Operation),
		Status:           string(ev.Status),
		ErrorKind:        nullString(string(ev.ErrorKind)),
		ErrorMessage:     nullString(ev.ErrorMessage),
		WorkerName:       nullString(ev.WorkerName),
		SubmittedAt:      ev.SubmittedAt.UTC(),
		CompletedAt:      ev.CompletedAt.UTC(),
		QueueWaitMs:      ev.QueueWait.Milliseconds(),
		ProcessingTimeMs: ev.ProcessingTime.Milliseconds(),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type Sink struct {
	db     Database
	logger *slog.Logger
}

func NewSink(db Database, logger *slog.Logger) *Sink {
	return &Sink{db: db, logger: logger}
}

// EnsureSchema creates the history table when it does not exist yet.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if err := s.db.ExecContext(ctx, schemaQuery); err != nil {
		return fmt.Errorf("failed to create job_history table: %w", err)
	}
	return nil
}

func (s *Sink) Name() string { return "archive" }

// Send stores ev. Events for jobs that are not terminal are refused.
func (s *Sink) Send(ctx context.Context, ev domain.JobEvent) error {
	if !ev.Status.IsTerminal() {
		return fmt.Errorf("archive: job %s is not terminal (status %s)", ev.JobID, ev.Status)
	}

	n, err := s.db.NamedExecContext(ctx, insertQuery, newJobRecord(ev))
	if err != nil {
		return fmt.Errorf("failed to archive job %s: %w", ev.JobID, err)
	}
	if n == 0 {
		s.logger.Debug("Job already archived", slog.String("job_id", ev.JobID))
	}
	return nil
}
