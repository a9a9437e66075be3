package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeOptions controls how uploaded bytes become an Image.
type DecodeOptions struct {
	// Grayscale converts to a single channel; otherwise RGB is kept.
	Grayscale bool
	// Width and Height resize the decoded image when both are positive.
	Width  int
	Height int
	// MaxPixels rejects sources larger than this many pixels. Zero disables it.
	MaxPixels int
}

// Decode parses PNG, JPEG, GIF, BMP, TIFF or WebP data into a normalised Image.
func Decode(data []byte, opts DecodeOptions) (*Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedInput, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrUnsupportedInput, cfg.Width, cfg.Height)
	}
	if opts.MaxPixels > 0 && cfg.Width*cfg.Height > opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedInput, cfg.Width, cfg.Height, opts.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedInput, err)
	}

	if opts.Width > 0 && opts.Height > 0 {
		src = resize(src, opts.Width, opts.Height)
	}

	return FromImage(src, opts.Grayscale)
}

// FromImage converts a standard library image into an Image.
func FromImage(src image.Image, grayscale bool) (*Image, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty bounds", ErrUnsupportedInput)
	}

	channels := RGB
	if grayscale {
		channels = Gray
	}

	out := &Image{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: channels,
		Pixels:   make([]float64, 0, b.Dx()*b.Dy()*channels),
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.At(x, y)
			if grayscale {
				g := color.GrayModel.Convert(c).(color.Gray)
				out.Pixels = append(out.Pixels, float64(g.Y)/255)
				continue
			}
			r, g, bl, _ := c.RGBA()
			out.Pixels = append(out.Pixels, float64(r)/0xffff, float64(g)/0xffff, float64(bl)/0xffff)
		}
	}

	return out, nil
}

func resize(src image.Image, width, height int) image.Image {
	if b := src.Bounds(); b.Dx() == width && b.Dy() == height {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
