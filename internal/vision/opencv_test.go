//go:build gocv

package vision

import (
	"image"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomFrame(seed uint64, w, h int) *Frame {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f := &Frame{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
	for i := range f.Pix {
		f.Pix[i] = uint8(rng.IntN(256))
	}
	return f
}

// maxDiff is the largest per-pixel difference between two planes.
func maxDiff(t *testing.T, a, b *Plane) float64 {
	t.Helper()
	require.Equal(t, a.Width, b.Width)
	require.Equal(t, a.Height, b.Height)
	var d float64
	for i := range a.Pix {
		d = math.Max(d, math.Abs(a.Pix[i]-b.Pix[i]))
	}
	return d
}

func backends(t *testing.T) (*Native, Ops) {
	t.Helper()
	cv, err := NewOpenCV()
	require.NoError(t, err)
	return NewNative(), cv
}

func TestOpenCVConvertColorMatchesNative(t *testing.T) {
	native, cv := backends(t)
	f := randomFrame(1, 64, 48)

	for _, space := range []ColorSpace{HSV, Gray} {
		want, err := native.ConvertColor(f, space)
		require.NoError(t, err)
		got, err := cv.ConvertColor(f, space)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.LessOrEqual(t, maxDiff(t, want[i], got[i]), 1.0, "%s channel %d", space, i)
		}
	}
}

func TestOpenCVFiltersMatchNative(t *testing.T) {
	native, cv := backends(t)
	gray, err := native.ConvertColor(randomFrame(2, 80, 60), Gray)
	require.NoError(t, err)
	p := gray[0]

	nb, err := native.GaussianBlur(p, 5)
	require.NoError(t, err)
	cb, err := cv.GaussianBlur(p, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, maxDiff(t, nb, cb), 1.0)

	nt, err := native.AdaptiveThreshold(nb, 11, 2)
	require.NoError(t, err)
	ct, err := cv.AdaptiveThreshold(cb, 11, 2)
	require.NoError(t, err)
	// Rounding in the local mean flips a few borderline pixels.
	assert.InDelta(t, nt.CountNonZero(), ct.CountNonZero(), float64(nt.Len())*0.02)

	ng, err := native.GradientMagnitude(p)
	require.NoError(t, err)
	cg, err := cv.GradientMagnitude(p)
	require.NoError(t, err)
	assert.InDelta(t, ng.Mean(), cg.Mean(), 1.0)
}

func TestOpenCVContoursMatchNative(t *testing.T) {
	native, cv := backends(t)
	p := NewPlane(40, 30)
	for y := 5; y < 20; y++ {
		for x := 8; x < 30; x++ {
			p.Set(x, y, 255)
		}
	}

	nc, err := native.FindContours(p)
	require.NoError(t, err)
	cc, err := cv.FindContours(p)
	require.NoError(t, err)
	require.Len(t, nc, 1)
	require.Len(t, cc, 1)

	assert.InDelta(t, nc[0].Area(), cc[0].Area(), 1e-9)
	assert.InDelta(t, nc[0].Perimeter(), cc[0].Perimeter(), 1e-9)
	assert.Equal(t, image.Rect(8, 5, 30, 20), cc[0].BoundingRect())
	assert.Equal(t, nc[0].BoundingRect(), cc[0].BoundingRect())
}
