// Package vision holds the image operations the feature extractors need and
// the backends that implement them.
//
// All backends follow OpenCV's 8-bit conventions: HSV uses H in 0-180 and
// S, V in 0-255; gray, blurred and binary planes hold integer values in 0-255.
package vision

import (
	"fmt"
	"image"
)

// ColorSpace selects a ConvertColor target.
type ColorSpace int

const (
	// HSV yields three planes: hue, saturation, value.
	HSV ColorSpace = iota
	// Gray yields one luma plane.
	Gray
)

func (c ColorSpace) String() string {
	switch c {
	case HSV:
		return "hsv"
	case Gray:
		return "gray"
	default:
		return fmt.Sprintf("colorspace(%d)", int(c))
	}
}

// Ops is the set of vision operations a backend provides. Results are
// plain Go memory; backends release any native buffers before returning.
type Ops interface {
	// Name identifies the backend in logs.
	Name() string

	// ConvertColor converts an RGB frame into one plane per channel of space.
	ConvertColor(f *Frame, space ColorSpace) ([]*Plane, error)

	// GaussianBlur smooths p with a ksize x ksize kernel, sigma derived from ksize.
	GaussianBlur(p *Plane, ksize int) (*Plane, error)

	// AdaptiveThreshold sets a pixel to 255 when it exceeds the Gaussian-weighted
	// mean of its blockSize neighbourhood minus offset, and to 0 otherwise.
	AdaptiveThreshold(p *Plane, blockSize int, offset float64) (*Plane, error)

	// FindContours returns the outer boundaries of the non-zero regions of a binary plane.
	FindContours(binary *Plane) ([]Contour, error)

	// EdgeDetect runs a two-threshold Canny detector. Edge pixels are 255.
	EdgeDetect(p *Plane, low, high float64) (*Plane, error)

	// GradientMagnitude returns sqrt(dx^2 + dy^2) of a 3x3 Sobel gradient.
	GradientMagnitude(p *Plane) (*Plane, error)
}

// Frame is an 8-bit RGB image, three bytes per pixel, row-major.
type Frame struct {
	Width, Height int
	Pix           []uint8
}

// NewFrame converts any image into a Frame, dropping alpha.
func NewFrame(img image.Image) *Frame {
	b := img.Bounds()
	f := &Frame{Width: b.Dx(), Height: b.Dy()}
	f.Pix = make([]uint8, f.Width*f.Height*3)

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < f.Height; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+f.Width*4]
			for x := 0; x < f.Width; x++ {
				i := (y*f.Width + x) * 3
				f.Pix[i] = row[x*4]
				f.Pix[i+1] = row[x*4+1]
				f.Pix[i+2] = row[x*4+2]
			}
		}
		return f
	}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*f.Width + x) * 3
			f.Pix[i] = uint8(r >> 8)
			f.Pix[i+1] = uint8(g >> 8)
			f.Pix[i+2] = uint8(bl >> 8)
		}
	}
	return f
}

// Len is the number of pixels.
func (f *Frame) Len() int { return f.Width * f.Height }

// Plane is a single-channel image of float64 samples, row-major.
type Plane struct {
	Width, Height int
	Pix           []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(w, h int) *Plane {
	return &Plane{Width: w, Height: h, Pix: make([]float64, w*h)}
}

// At returns the sample at (x, y).
func (p *Plane) At(x, y int) float64 { return p.Pix[y*p.Width+x] }

// Set writes the sample at (x, y).
func (p *Plane) Set(x, y int, v float64) { p.Pix[y*p.Width+x] = v }

// Len is the number of samples.
func (p *Plane) Len() int { return len(p.Pix) }

func checkPlane(p *Plane) error {
	if p == nil || p.Width <= 0 || p.Height <= 0 || len(p.Pix) != p.Width*p.Height {
		return fmt.Errorf("invalid plane")
	}
	return nil
}

func checkFrame(f *Frame) error {
	if f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) != f.Width*f.Height*3 {
		return fmt.Errorf("invalid frame")
	}
	return nil
}

func checkKernel(k int) error {
	if k < 1 || k%2 == 0 {
		return fmt.Errorf("kernel size must be odd and positive, got %d", k)
	}
	return nil
}
