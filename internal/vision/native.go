package vision

import (
	"fmt"
	"math"
)

// Native implements Ops in pure Go.
type Native struct{}

// NewNative returns the pure-Go backend.
func NewNative() *Native { return &Native{} }

func (*Native) Name() string { return "native" }

func (*Native) ConvertColor(f *Frame, space ColorSpace) ([]*Plane, error) {
	if err := checkFrame(f); err != nil {
		return nil, err
	}

	switch space {
	case HSV:
		h, s, v := NewPlane(f.Width, f.Height), NewPlane(f.Width, f.Height), NewPlane(f.Width, f.Height)
		for i := 0; i < f.Len(); i++ {
			h.Pix[i], s.Pix[i], v.Pix[i] = hsv8(f.Pix[i*3], f.Pix[i*3+1], f.Pix[i*3+2])
		}
		return []*Plane{h, s, v}, nil
	case Gray:
		g := NewPlane(f.Width, f.Height)
		for i := 0; i < f.Len(); i++ {
			g.Pix[i] = luma(f.Pix[i*3], f.Pix[i*3+1], f.Pix[i*3+2])
		}
		return []*Plane{g}, nil
	default:
		return nil, fmt.Errorf("unsupported color space %s", space)
	}
}

func (*Native) GaussianBlur(p *Plane, ksize int) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	if err := checkKernel(ksize); err != nil {
		return nil, err
	}
	k := gaussianKernel(ksize)
	return round8(separable(p, k, k, borderReflect101)), nil
}

func (*Native) AdaptiveThreshold(p *Plane, blockSize int, offset float64) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	if err := checkKernel(blockSize); err != nil {
		return nil, err
	}
	if blockSize < 3 {
		return nil, fmt.Errorf("block size must be at least 3, got %d", blockSize)
	}

	k := gaussianKernel(blockSize)
	mean := round8(separable(p, k, k, borderReplicate))
	delta := math.Ceil(offset)

	out := NewPlane(p.Width, p.Height)
	for i, v := range p.Pix {
		if v-mean.Pix[i] > -delta {
			out.Pix[i] = 255
		}
	}
	return out, nil
}

func (*Native) FindContours(binary *Plane) ([]Contour, error) {
	if err := checkPlane(binary); err != nil {
		return nil, err
	}
	return traceExternal(binary), nil
}

func (*Native) EdgeDetect(p *Plane, low, high float64) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	if low > high {
		low, high = high, low
	}
	return canny(p, low, high), nil
}

func (*Native) GradientMagnitude(p *Plane) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	dx, dy := sobel(p, borderReflect101)
	out := NewPlane(p.Width, p.Height)
	for i := range out.Pix {
		out.Pix[i] = math.Hypot(dx.Pix[i], dy.Pix[i])
	}
	return out, nil
}

// tan(22.5°), used to bucket gradient directions.
const tan22 = 0.41421356237309503

const (
	edgeNone uint8 = iota
	edgeWeak
	edgeStrong
)

// canny follows OpenCV: 3x3 Sobel with replicated borders, L1 magnitude,
// non-maximum suppression along four directions, then hysteresis over
// 8-connected neighbours.
func canny(p *Plane, low, high float64) *Plane {
	w, h := p.Width, p.Height
	dx, dy := sobel(p, borderReplicate)

	mag := make([]float64, w*h)
	for i := range mag {
		mag[i] = math.Abs(dx.Pix[i]) + math.Abs(dy.Pix[i])
	}
	at := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	state := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}

			gx, gy := dx.Pix[i], dy.Pix[i]
			ax, ay := math.Abs(gx), math.Abs(gy)

			var isMax bool
			switch {
			case ay <= tan22*ax:
				isMax = m > at(x-1, y) && m >= at(x+1, y)
			case ay*tan22 > ax:
				isMax = m > at(x, y-1) && m >= at(x, y+1)
			default:
				s := 1
				if (gx < 0) != (gy < 0) {
					s = -1
				}
				isMax = m > at(x-s, y-1) && m > at(x+s, y+1)
			}
			if !isMax {
				continue
			}

			if m > high {
				state[i] = edgeStrong
				stack = append(stack, i)
			} else {
				state[i] = edgeWeak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == edgeWeak {
					state[j] = edgeStrong
					stack = append(stack, j)
				}
			}
		}
	}

	out := NewPlane(w, h)
	for i, s := range state {
		if s == edgeStrong {
			out.Pix[i] = 255
		}
	}
	return out
}
