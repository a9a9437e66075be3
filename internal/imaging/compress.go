package imaging

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// headerBytes is the fixed encoded overhead: width and height (uint32 each),
// block size (uint8), kept-coefficient count (uint16) and a float32 step.
const headerBytes = 15

// maxQubits caps the register width reported for a compressed payload.
const maxQubits = 8

// CompressionOptions tunes Compress.
type CompressionOptions struct {
	// TargetRatio is the wanted size reduction, strictly between 0 and 1.
	TargetRatio float64
	// BlockSize is the edge of the square projection blocks. It is capped to
	// the image's smaller dimension.
	BlockSize int
}

// DefaultCompressionOptions matches the service defaults.
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{TargetRatio: 0.75, BlockSize: 8}
}

// CompressedImage is the truncated, quantised block-basis encoding of an image.
type CompressedImage struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	BlockSize    int     `json:"block_size"`
	Keep         int     `json:"keep"`
	Step         float64 `json:"step"`
	Coefficients []int8  `json:"coefficients"`
}

// EncodedSize is the payload size in bytes.
func (c *CompressedImage) EncodedSize() int {
	return headerBytes + len(c.Coefficients)
}

// OriginalSize is the size in bytes of the 8-bit luminance the payload was
// built from. Colour input counts one byte per pixel, not three.
func (c *CompressedImage) OriginalSize() int {
	return c.Width * c.Height
}

// Ratio is 1 - EncodedSize/OriginalSize, measured against 8-bit luminance.
// For very small images the fixed header can outweigh the pixels and the
// ratio goes negative.
func (c *CompressedImage) Ratio() float64 {
	return 1 - float64(c.EncodedSize())/float64(c.OriginalSize())
}

// QubitsUsed is the number of qubits whose basis states index the encoded
// bytes, floor(log2(EncodedSize)), capped at 8.
func (c *CompressedImage) QubitsUsed() int {
	return min(maxQubits, bits.Len(uint(c.EncodedSize()))-1)
}

// Compress projects luminance blocks onto an orthonormal cosine basis, keeps
// the lowest-frequency amplitudes and quantises them to one byte each.
//
// The achieved ratio tracks TargetRatio to within 1/(2*B*B) plus the header
// and edge-padding share, where B is the effective block size. At least one
// amplitude per block is always kept, which floors the ratio at 1-1/(B*B).
func Compress(ctx context.Context, img *Image, opts CompressionOptions) (*CompressedImage, float64, error) {
	if err := img.Validate(); err != nil {
		return nil, 0, err
	}
	if !(opts.TargetRatio > 0 && opts.TargetRatio < 1) {
		return nil, 0, fmt.Errorf("%w: target ratio %v outside (0,1)", ErrInvalidParameter, opts.TargetRatio)
	}
	if opts.BlockSize <= 0 {
		return nil, 0, fmt.Errorf("%w: block size %d", ErrInvalidParameter, opts.BlockSize)
	}

	lum := img.Luminance()
	b := min(opts.BlockSize, lum.Width, lum.Height)
	area := b * b
	keep := int(math.Round(float64(area) * (1 - opts.TargetRatio)))
	keep = max(1, min(keep, area))

	basis := cosineBasis(b)
	order := zigzag(b)
	bx := (lum.Width + b - 1) / b
	by := (lum.Height + b - 1) / b

	amps := make([]float64, 0, bx*by*keep)
	block := mat.NewDense(b, b, nil)
	var tmp, coef mat.Dense

	for j := 0; j < by; j++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		for i := 0; i < bx; i++ {
			loadBlock(block, lum, i*b, j*b)
			tmp.Mul(basis, block)
			coef.Mul(&tmp, basis.T())
			for _, p := range order[:keep] {
				amps = append(amps, coef.At(p[0], p[1]))
			}
		}
	}

	var maxAbs float64
	for _, a := range amps {
		maxAbs = math.Max(maxAbs, math.Abs(a))
	}
	step := maxAbs / 127
	if step == 0 {
		step = 1
	}

	coeffs := make([]int8, len(amps))
	for k, a := range amps {
		q := math.Round(a / step)
		coeffs[k] = int8(math.Max(-127, math.Min(127, q)))
	}

	c := &CompressedImage{
		Width:        lum.Width,
		Height:       lum.Height,
		BlockSize:    b,
		Keep:         keep,
		Step:         step,
		Coefficients: coeffs,
	}
	return c, c.Ratio(), nil
}

// Decompress rebuilds an approximate single-channel image from c.
func Decompress(c *CompressedImage) (*Image, error) {
	if c == nil || c.Width <= 0 || c.Height <= 0 || c.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: malformed compressed image", ErrUnsupportedInput)
	}

	b := c.BlockSize
	bx := (c.Width + b - 1) / b
	by := (c.Height + b - 1) / b
	if c.Keep <= 0 || c.Keep > b*b || len(c.Coefficients) != bx*by*c.Keep {
		return nil, fmt.Errorf("%w: coefficient count %d", ErrUnsupportedInput, len(c.Coefficients))
	}

	basis := cosineBasis(b)
	order := zigzag(b)
	out := Zeros(c.Width, c.Height)
	coef := mat.NewDense(b, b, nil)
	var tmp, block mat.Dense

	k := 0
	for j := 0; j < by; j++ {
		for i := 0; i < bx; i++ {
			coef.Zero()
			for _, p := range order[:c.Keep] {
				coef.Set(p[0], p[1], float64(c.Coefficients[k])*c.Step)
				k++
			}
			tmp.Mul(basis.T(), coef)
			block.Mul(&tmp, basis)
			storeBlock(out, &block, i*b, j*b)
		}
	}

	return out, nil
}

// cosineBasis returns the orthonormal DCT-II matrix of size n.
func cosineBasis(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		scale := math.Sqrt(2 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		for x := 0; x < n; x++ {
			d.Set(k, x, scale*math.Cos(math.Pi*float64(2*x+1)*float64(k)/float64(2*n)))
		}
	}
	return d
}

// zigzag lists block positions from lowest to highest spatial frequency.
func zigzag(n int) [][2]int {
	order := make([][2]int, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			order = append(order, [2]int{r, c})
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		si := order[i][0] + order[i][1]
		sj := order[j][0] + order[j][1]
		if si != sj {
			return si < sj
		}
		// Alternate direction on each anti-diagonal.
		if si%2 == 0 {
			return order[i][1] < order[j][1]
		}
		return order[i][0] < order[j][0]
	})
	return order
}

// loadBlock copies the b×b tile at (x0, y0) into block, zero padding past the
// image edges.
func loadBlock(block *mat.Dense, img *Image, x0, y0 int) {
	b, _ := block.Dims()
	for r := 0; r < b; r++ {
		for c := 0; c < b; c++ {
			x, y := x0+c, y0+r
			v := 0.0
			if x < img.Width && y < img.Height {
				v = img.Pixels[y*img.Width+x]
			}
			block.Set(r, c, v)
		}
	}
}

func storeBlock(img *Image, block *mat.Dense, x0, y0 int) {
	b, _ := block.Dims()
	for r := 0; r < b; r++ {
		for c := 0; c < b; c++ {
			x, y := x0+c, y0+r
			if x < img.Width && y < img.Height {
				img.Pixels[y*img.Width+x] = clamp01(block.At(r, c))
			}
		}
	}
}
