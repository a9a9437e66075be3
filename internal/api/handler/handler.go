package handler

import (
	"log/slog"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/imaging"
	"github.com/cuongbtq/quantum-imaging/internal/stats"
	"github.com/cuongbtq/quantum-imaging/internal/worker/storage"
)

// Scheduler is the part of the worker pool the handlers use
type Scheduler interface {
	Submit(op domain.Operation, img *imaging.Image, opts domain.Options) (domain.Job, error)
	Get(jobID string) (domain.Job, error)
	List(filter storage.JobFilter) []domain.Job
	Delete(jobID string) error
	Stats() stats.Statistics
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Scheduler      Scheduler
	Decode         imaging.DecodeOptions
	MaxUploadBytes int64
	ServiceName    string
	Version        string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger         *slog.Logger
	scheduler      Scheduler
	decode         imaging.DecodeOptions
	maxUploadBytes int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:         deps.Logger,
		scheduler:      deps.Scheduler,
		decode:         deps.Decode,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

// StatsHandler serves the statistics snapshot
type StatsHandler struct {
	logger    *slog.Logger
	scheduler Scheduler
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(deps *Dependencies) *StatsHandler {
	return &StatsHandler{
		logger:    deps.Logger,
		scheduler: deps.Scheduler,
	}
}
