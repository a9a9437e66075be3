package worker

import (
	"context"
	"fmt"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/imaging"
	"gonum.org/v1/gonum/stat"
)

// Executor runs the transform a job names
type Executor interface {
	Execute(ctx context.Context, job domain.Job) (*domain.Result, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, job domain.Job) (*domain.Result, error)

// Execute calls f
func (f ExecutorFunc) Execute(ctx context.Context, job domain.Job) (*domain.Result, error) {
	return f(ctx, job)
}

// Sink receives an event for every job that reaches a terminal state
type Sink interface {
	Name() string
	Send(ctx context.Context, ev domain.JobEvent) error
}

// TransformExecutor dispatches jobs to the imaging transforms
type TransformExecutor struct {
	edge      imaging.EdgeOptions
	blockSize int
}

// NewTransformExecutor creates an executor with the service-wide transform
// settings. Per-job parameters come from the job itself.
func NewTransformExecutor(edge imaging.EdgeOptions, blockSize int) *TransformExecutor {
	return &TransformExecutor{edge: edge, blockSize: blockSize}
}

// Execute runs job.Operation on job.Input
func (e *TransformExecutor) Execute(ctx context.Context, job domain.Job) (*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch job.Operation {
	case domain.OpEdgeDetection:
		edges, err := imaging.EdgeDetection(ctx, job.Input, e.edge)
		if err != nil {
			return nil, err
		}
		_, quality := stat.PopMeanStdDev(edges.Pixels, nil)
		return &domain.Result{Edges: edges, EdgeQuality: quality}, nil

	case domain.OpCompression:
		compressed, ratio, err := imaging.Compress(ctx, job.Input, imaging.CompressionOptions{
			TargetRatio: job.Params.TargetRatio,
			BlockSize:   e.blockSize,
		})
		if err != nil {
			return nil, err
		}
		return &domain.Result{
			Compressed:    compressed,
			AchievedRatio: ratio,
			QubitsUsed:    compressed.QubitsUsed(),
		}, nil

	case domain.OpFeatureExtraction:
		features, err := imaging.ExtractFeatures(ctx, job.Input, imaging.FeatureOptions{
			Count: job.Params.FeatureCount,
			Seed:  job.Params.Seed,
		})
		if err != nil {
			return nil, err
		}
		return &domain.Result{Features: features}, nil

	case domain.OpFrequencyAnalysis:
		spectrum, err := imaging.AnalyzeFrequency(ctx, job.Input)
		if err != nil {
			return nil, err
		}
		return &domain.Result{Spectrum: spectrum}, nil

	default:
		return nil, fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidParameter, job.Operation)
	}
}
