package imaging

import (
	"context"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is the 2-D discrete Fourier transform of an image's luminance,
// stored row-major with the zero frequency at index 0.
type Spectrum struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Magnitude []float64 `json:"magnitude"`
	Phase     []float64 `json:"phase"`
}

// DC returns the zero-frequency magnitude, which equals the sum of intensities.
func (s *Spectrum) DC() float64 {
	return s.Magnitude[0]
}

// AnalyzeFrequency transforms the luminance rows and then columns with a
// complex FFT, the classical counterpart of a quantum Fourier transform.
func AnalyzeFrequency(ctx context.Context, img *Image) (*Spectrum, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	lum := img.Luminance()
	w, h := lum.Width, lum.Height

	data := make([]complex128, w*h)
	for i, v := range lum.Pixels {
		data[i] = complex(v, 0)
	}

	if w > 1 {
		rowFFT := fourier.NewCmplxFFT(w)
		for y := 0; y < h; y++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			row := data[y*w : (y+1)*w]
			rowFFT.Coefficients(row, row)
		}
	}

	if h > 1 {
		colFFT := fourier.NewCmplxFFT(h)
		col := make([]complex128, h)
		for x := 0; x < w; x++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for y := 0; y < h; y++ {
				col[y] = data[y*w+x]
			}
			colFFT.Coefficients(col, col)
			for y := 0; y < h; y++ {
				data[y*w+x] = col[y]
			}
		}
	}

	spec := &Spectrum{
		Width:     w,
		Height:    h,
		Magnitude: make([]float64, len(data)),
		Phase:     make([]float64, len(data)),
	}
	for i, c := range data {
		spec.Magnitude[i] = cmplx.Abs(c)
		spec.Phase[i] = cmplx.Phase(c)
	}
	return spec, nil
}
