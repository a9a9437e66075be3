package imaging

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// textureStrides is the number of strided sub-grids whose variance describes
// texture.
const textureStrides = 4

// statFeatures is the length of the statistics block at the head of every
// feature vector: mean, std-dev, min, max and one variance per stride.
const statFeatures = 4 + textureStrides

// ctxCheckEvery is how many rotation features are drawn between context checks.
const ctxCheckEvery = 1024

// FeatureOptions tunes ExtractFeatures.
type FeatureOptions struct {
	Count int
	Seed  uint64
}

// DefaultFeatureOptions matches the service defaults.
func DefaultFeatureOptions() FeatureOptions {
	return FeatureOptions{Count: 256, Seed: 42}
}

// ExtractFeatures returns a vector of exactly opts.Count values.
//
// The vector starts with global statistics of the luminance and continues with
// controlled-rotation responses over the L2-normalised amplitudes. The gate
// layout is drawn from a PCG stream seeded by opts.Seed, so equal inputs give
// equal vectors.
func ExtractFeatures(ctx context.Context, img *Image, opts FeatureOptions) ([]float64, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if opts.Count <= 0 || opts.Count > img.PixelCount() {
		return nil, fmt.Errorf("%w: feature count %d outside [1,%d]", ErrInvalidParameter, opts.Count, img.PixelCount())
	}

	lum := img.Luminance()
	features := make([]float64, 0, max(opts.Count, statFeatures))
	features = append(features, statistics(lum)...)
	if opts.Count <= len(features) {
		return features[:opts.Count], nil
	}

	amps := append([]float64(nil), lum.Pixels...)
	if norm := floats.Norm(amps, 2); norm > 0 {
		floats.Scale(1/norm, amps)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	n := len(amps)
	for len(features) < opts.Count {
		if (len(features)-statFeatures)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		control := amps[rng.IntN(n)]
		target := amps[rng.IntN(n)]
		spare := amps[rng.IntN(n)]
		theta := rng.Float64() * 2 * math.Pi

		// First output amplitude of an RY(theta) on (target, spare), weighted by
		// how strongly the control qubit is populated.
		features = append(features, math.Abs(control)*(math.Cos(theta)*target-math.Sin(theta)*spare))
	}

	return features, nil
}

func statistics(lum *Image) []float64 {
	mean, std := stat.PopMeanStdDev(lum.Pixels, nil)
	out := []float64{mean, std, floats.Min(lum.Pixels), floats.Max(lum.Pixels)}

	for s := 0; s < textureStrides; s++ {
		var patch []float64
		for y := s; y < lum.Height; y += textureStrides {
			for x := s; x < lum.Width; x += textureStrides {
				patch = append(patch, lum.Pixels[y*lum.Width+x])
			}
		}
		variance := 0.0
		if len(patch) > 0 {
			_, variance = stat.PopMeanVariance(patch, nil)
		}
		out = append(out, variance)
	}
	return out
}
