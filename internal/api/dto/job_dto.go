package dto

import (
	"time"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/stats"
)

// CreateJobRequest is the non-file part of the multipart submission form.
// Absent numeric fields stay nil and fall back to the service defaults.
type CreateJobRequest struct {
	Operation    string   `form:"operation" binding:"required"`
	TargetRatio  *float64 `form:"target_ratio"`
	FeatureCount *int     `form:"feature_count"`
	Seed         *uint64  `form:"seed"`
}

type CreateJobResponse struct {
	JobID  string           `json:"job_id"`
	Status string           `json:"status"`
	Error  *domain.JobError `json:"error,omitempty"`
}

type ListJobsRequest struct {
	Operation string `form:"operation"`
	Status    string `form:"status"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID          string           `json:"job_id"`
	Operation      string           `json:"operation"`
	Status         string           `json:"status"`
	Params         domain.Params    `json:"params"`
	WorkerName     string           `json:"worker_name,omitempty"`
	SubmittedAt    string           `json:"submitted_at"`
	StartedAt      string           `json:"started_at,omitempty"`
	CompletedAt    string           `json:"completed_at,omitempty"`
	ProcessingTime float64          `json:"processing_time,omitempty"`
	Result         *domain.Result   `json:"result,omitempty"`
	Error          *domain.JobError `json:"error,omitempty"`
}

// NewJobDTO converts a job snapshot. Results are left out of listings.
func NewJobDTO(job domain.Job, withResult bool) JobDTO {
	out := JobDTO{
		JobID:          job.ID,
		Operation:      string(job.Operation),
		Status:         string(job.Status),
		Params:         job.Params,
		WorkerName:     job.WorkerName,
		SubmittedAt:    job.SubmittedAt.Format(time.RFC3339Nano),
		ProcessingTime: job.ProcessingTime().Seconds(),
		Error:          job.Error,
	}
	if job.StartedAt != nil {
		out.StartedAt = job.StartedAt.Format(time.RFC3339Nano)
	}
	if job.CompletedAt != nil {
		out.CompletedAt = job.CompletedAt.Format(time.RFC3339Nano)
	}
	if withResult {
		out.Result = job.Result
	}
	return out
}

type OperationStatsDTO struct {
	Completed             int64   `json:"completed"`
	Failed                int64   `json:"failed"`
	Processed             int64   `json:"processed"`
	AverageProcessingTime float64 `json:"average_processing_time"`
}

// StatsResponse reports durations in seconds
type StatsResponse struct {
	Queued                int64                        `json:"queued"`
	Processing            int64                        `json:"processing"`
	Completed             int64                        `json:"completed"`
	Failed                int64                        `json:"failed"`
	Submitted             int64                        `json:"submitted"`
	Rejected              int64                        `json:"rejected"`
	Processed             int64                        `json:"processed"`
	QueueDepth            int                          `json:"queue_depth"`
	TotalProcessingTime   float64                      `json:"total_processing_time"`
	AverageProcessingTime float64                      `json:"average_processing_time"`
	LastProcessedAt       string                       `json:"last_processed_at,omitempty"`
	UptimeSeconds         float64                      `json:"uptime_seconds"`
	ByOperation           map[string]OperationStatsDTO `json:"by_operation"`
}

func NewStatsResponse(s stats.Statistics, now time.Time) StatsResponse {
	out := StatsResponse{
		Queued:                s.Queued,
		Processing:            s.Processing,
		Completed:             s.Completed,
		Failed:                s.Failed,
		Submitted:             s.Submitted,
		Rejected:              s.Rejected,
		Processed:             s.Processed,
		QueueDepth:            s.QueueDepth,
		TotalProcessingTime:   s.TotalProcessingTime.Seconds(),
		AverageProcessingTime: s.AverageProcessingTime.Seconds(),
		UptimeSeconds:         now.Sub(s.StartedAt).Seconds(),
		ByOperation:           make(map[string]OperationStatsDTO, len(s.ByOperation)),
	}
	if s.LastProcessedAt != nil {
		out.LastProcessedAt = s.LastProcessedAt.Format(time.RFC3339Nano)
	}
	for op, os := range s.ByOperation {
		out.ByOperation[string(op)] = OperationStatsDTO{
			Completed:             os.Completed,
			Failed:                os.Failed,
			Processed:             os.Processed,
			AverageProcessingTime: os.AverageProcessingTime.Seconds(),
		}
	}
	return out
}
