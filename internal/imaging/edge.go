package imaging

import (
	"context"
	"fmt"
	"math"
)

// EdgeOptions tunes EdgeDetection.
type EdgeOptions struct {
	// Enhancement scales the gradient magnitude before clipping.
	Enhancement float64
	// Threshold zeroes magnitudes strictly below it.
	Threshold float64
}

// DefaultEdgeOptions matches the service defaults.
func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{Enhancement: 1.2, Threshold: 0}
}

// gradientWeight is the amplitude given to each gradient direction. The two
// directions are held in an equal superposition, so the weights square-sum to 1.
var gradientWeight = 1 / math.Sqrt2

// EdgeDetection returns a single-channel gradient-magnitude map with the
// input's width and height.
func EdgeDetection(ctx context.Context, img *Image, opts EdgeOptions) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if opts.Enhancement < 0 || math.IsNaN(opts.Enhancement) || math.IsInf(opts.Enhancement, 0) {
		return nil, fmt.Errorf("%w: enhancement %v", ErrInvalidParameter, opts.Enhancement)
	}
	if opts.Threshold < 0 || opts.Threshold > 1 || math.IsNaN(opts.Threshold) {
		return nil, fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidParameter, opts.Threshold)
	}

	lum := img.Luminance()
	w, h := lum.Width, lum.Height
	out := Zeros(w, h)

	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			gx := gradient(lum, x, y, 1, 0)
			gy := gradient(lum, x, y, 0, 1)

			// Measuring the superposed amplitudes gives back the Euclidean norm
			// scaled by 1/sqrt(2); undo the scale so a unit step stays a unit edge.
			ax := gradientWeight * gx
			ay := gradientWeight * gy
			mag := math.Sqrt(2*(ax*ax+ay*ay)) * opts.Enhancement

			if mag < opts.Threshold {
				mag = 0
			}
			out.Pixels[y*w+x] = clamp01(mag)
		}
	}

	return out, nil
}

// gradient is the central difference along (dx, dy), one-sided at the borders
// and zero along an axis of length 1.
func gradient(img *Image, x, y, dx, dy int) float64 {
	n := img.Width
	pos := x
	if dy != 0 {
		n = img.Height
		pos = y
	}
	if n < 2 {
		return 0
	}

	at := func(p int) float64 {
		if dx != 0 {
			return img.Pixels[y*img.Width+p]
		}
		return img.Pixels[p*img.Width+x]
	}

	switch pos {
	case 0:
		return at(1) - at(0)
	case n - 1:
		return at(n-1) - at(n-2)
	default:
		return (at(pos+1) - at(pos-1)) / 2
	}
}
