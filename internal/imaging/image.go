// Package imaging implements the quantum-inspired transforms that run on decoded
// pixel grids: edge detection, block compression, feature extraction and
// frequency analysis.
//
// Every transform is a pure function of its inputs. Nothing is cached between
// calls, so the functions are safe to call from many workers at once as long as
// each call gets its own options value.
package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInput is returned for empty images, unsupported channel
	// counts and payloads that cannot be decoded.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrInvalidParameter is returned when a transform argument is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Supported channel layouts.
const (
	Gray = 1
	RGB  = 3
)

// Image is an immutable row-major grid of intensities in [0,1].
// Multi-channel images store channels interleaved per pixel.
type Image struct {
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Channels int       `json:"channels"`
	Pixels   []float64 `json:"pixels"`
}

// New validates the dimensions and copies pixels into a new Image.
func New(width, height, channels int, pixels []float64) (*Image, error) {
	img := &Image{Width: width, Height: height, Channels: channels, Pixels: pixels}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	img.Pixels = append([]float64(nil), pixels...)
	return img, nil
}

// Zeros returns a single-channel image with every pixel set to 0.
func Zeros(width, height int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: Gray,
		Pixels:   make([]float64, width*height),
	}
}

// Validate reports ErrUnsupportedInput when the image cannot be transformed.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("%w: image is nil", ErrUnsupportedInput)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrUnsupportedInput, img.Width, img.Height)
	}
	if img.Channels != Gray && img.Channels != RGB {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedInput, img.Channels)
	}
	if want := img.Width * img.Height * img.Channels; len(img.Pixels) != want {
		return fmt.Errorf("%w: got %d samples, want %d", ErrUnsupportedInput, len(img.Pixels), want)
	}
	return nil
}

// PixelCount is the number of pixel positions, independent of channels.
func (img *Image) PixelCount() int {
	return img.Width * img.Height
}

// At returns the sample of channel c at (x, y).
func (img *Image) At(x, y, c int) float64 {
	return img.Pixels[(y*img.Width+x)*img.Channels+c]
}

// Luminance returns a grayscale view of the image. Grayscale images are
// returned as is.
func (img *Image) Luminance() *Image {
	if img.Channels == Gray {
		return img
	}

	out := Zeros(img.Width, img.Height)
	for i := range out.Pixels {
		r := img.Pixels[i*RGB]
		g := img.Pixels[i*RGB+1]
		b := img.Pixels[i*RGB+2]
		out.Pixels[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
