package vision

import "math"

type border int

const (
	// borderReflect101 mirrors without repeating the edge: gfedcb|abcdefgh|gfedcba.
	borderReflect101 border = iota
	// borderReplicate repeats the edge: aaaaaa|abcdefgh|hhhhhhh.
	borderReplicate
)

func (b border) index(i, n int) int {
	if n == 1 {
		return 0
	}
	switch b {
	case borderReplicate:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	default:
		for i < 0 || i >= n {
			if i < 0 {
				i = -i
			}
			if i >= n {
				i = 2*(n-1) - i
			}
		}
		return i
	}
}

// Small Gaussian kernels OpenCV uses when sigma is derived from the size.
var smallGaussian = map[int][]float64{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

// gaussianKernel returns a normalised 1-D kernel of odd size k with
// sigma = 0.3*((k-1)*0.5 - 1) + 0.8.
func gaussianKernel(k int) []float64 {
	if kern, ok := smallGaussian[k]; ok {
		return kern
	}
	sigma := 0.3*(float64(k-1)*0.5-1) + 0.8
	kern := make([]float64, k)
	var sum float64
	c := float64(k-1) / 2
	for i := range kern {
		x := float64(i) - c
		kern[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += kern[i]
	}
	for i := range kern {
		kern[i] /= sum
	}
	return kern
}

// separable convolves p with kx horizontally and ky vertically.
func separable(p *Plane, kx, ky []float64, b border) *Plane {
	w, h := p.Width, p.Height
	tmp := NewPlane(w, h)
	rx := len(kx) / 2
	for y := 0; y < h; y++ {
		row := p.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float64
			for i, kv := range kx {
				acc += kv * row[b.index(x+i-rx, w)]
			}
			tmp.Pix[y*w+x] = acc
		}
	}

	out := NewPlane(w, h)
	ry := len(ky) / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for i, kv := range ky {
				acc += kv * tmp.Pix[b.index(y+i-ry, h)*w+x]
			}
			out.Pix[y*w+x] = acc
		}
	}
	return out
}

// round8 rounds every sample and saturates it into 0-255.
func round8(p *Plane) *Plane {
	for i, v := range p.Pix {
		v = math.Round(v)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		p.Pix[i] = v
	}
	return p
}

var (
	sobelDeriv  = []float64{-1, 0, 1}
	sobelSmooth = []float64{1, 2, 1}
)

// sobel returns the x and y derivatives of a 3x3 Sobel operator.
func sobel(p *Plane, b border) (dx, dy *Plane) {
	return separable(p, sobelDeriv, sobelSmooth, b), separable(p, sobelSmooth, sobelDeriv, b)
}
