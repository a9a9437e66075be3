package worker

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cancelAfter reports cancellation once Err has been called more than n times.
type cancelAfter struct {
	context.Context
	n     int64
	calls atomic.Int64
}

func (c *cancelAfter) Err() error {
	if c.calls.Add(1) > c.n {
		return context.Canceled
	}
	return nil
}

func TestTransformExecutor_StopsMidTransform(t *testing.T) {
	exec := NewTransformExecutor(imaging.DefaultEdgeOptions(), 8)
	img := imaging.Zeros(64, 64)

	tests := []struct {
		op     domain.Operation
		params domain.Params
	}{
		{op: domain.OpEdgeDetection},
		{op: domain.OpCompression, params: domain.Params{TargetRatio: 0.5}},
		{op: domain.OpFeatureExtraction, params: domain.Params{FeatureCount: 64, Seed: 1}},
		{op: domain.OpFrequencyAnalysis},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			// The first check passes, so cancellation is seen inside the transform.
			ctx := &cancelAfter{Context: context.Background(), n: 1}
			res, err := exec.Execute(ctx, domain.Job{Operation: tt.op, Input: img, Params: tt.params})
			assert.ErrorIs(t, err, context.Canceled)
			assert.Nil(t, res)
			assert.Greater(t, ctx.calls.Load(), int64(1))
		})
	}
}

func TestTransformExecutor_CompressionReportsQubits(t *testing.T) {
	exec := NewTransformExecutor(imaging.DefaultEdgeOptions(), 8)

	res, err := exec.Execute(context.Background(), domain.Job{
		Operation: domain.OpCompression,
		Input:     imaging.Zeros(64, 64),
		Params:    domain.Params{TargetRatio: 0.75},
	})
	require.NoError(t, err)
	// 15 header bytes plus 64 blocks of 16 amplitudes
	assert.Equal(t, 15+64*16, res.Compressed.EncodedSize())
	assert.Equal(t, 8, res.QubitsUsed)

	res, err = exec.Execute(context.Background(), domain.Job{
		Operation: domain.OpCompression,
		Input:     imaging.Zeros(4, 4),
		Params:    domain.Params{TargetRatio: 0.75},
	})
	require.NoError(t, err)
	// 15 + 4 bytes
	assert.Equal(t, 4, res.QubitsUsed)
}
