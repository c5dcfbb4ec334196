package vision

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean is the arithmetic mean of all samples.
func (p *Plane) Mean() float64 {
	if p.Len() == 0 {
		return 0
	}
	return stat.Mean(p.Pix, nil)
}

// StdDev is the population standard deviation of all samples.
func (p *Plane) StdDev() float64 {
	if p.Len() == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(p.Pix, nil)
	return std
}

// CountNonZero counts samples different from zero.
func (p *Plane) CountNonZero() int {
	n := 0
	for _, v := range p.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Range is an inclusive per-channel interval for InRange.
type Range struct {
	Lo, Hi [3]float64
}

// InRange counts pixels whose three channel values all fall inside r.
func InRange(a, b, c *Plane, r Range) int {
	n := 0
	for i := range a.Pix {
		if within(a.Pix[i], r.Lo[0], r.Hi[0]) &&
			within(b.Pix[i], r.Lo[1], r.Hi[1]) &&
			within(c.Pix[i], r.Lo[2], r.Hi[2]) {
			n++
		}
	}
	return n
}

func within(v, lo, hi float64) bool { return v >= lo && v <= hi }

// LocalStdDev returns, for every pixel, the population standard deviation
// of the window x window neighbourhood around it. The window is clipped at
// the plane edges.
func LocalStdDev(p *Plane, window int) *Plane {
	w, h := p.Width, p.Height
	stride := w + 1
	sum := make([]float64, stride*(h+1))
	sq := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rs, rq float64
		for x := 0; x < w; x++ {
			v := p.Pix[y*w+x]
			rs += v
			rq += v * v
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rs
			sq[(y+1)*stride+x+1] = sq[y*stride+x+1] + rq
		}
	}
	box := func(t []float64, x0, y0, x1, y1 int) float64 {
		return t[y1*stride+x1] - t[y0*stride+x1] - t[y1*stride+x0] + t[y0*stride+x0]
	}

	r := window / 2
	out := NewPlane(w, h)
	for y := 0; y < h; y++ {
		y0, y1 := max(y-r, 0), min(y+r+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-r, 0), min(x+r+1, w)
			n := float64((x1 - x0) * (y1 - y0))
			mean := box(sum, x0, y0, x1, y1) / n
			variance := box(sq, x0, y0, x1, y1)/n - mean*mean
			if variance < 0 {
				variance = 0
			}
			out.Pix[y*w+x] = math.Sqrt(variance)
		}
	}
	return out
}
