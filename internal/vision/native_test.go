package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(w, h int, r, g, b uint8) *Frame {
	f := &Frame{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
	for i := 0; i < w*h; i++ {
		f.Pix[i*3], f.Pix[i*3+1], f.Pix[i*3+2] = r, g, b
	}
	return f
}

func constPlane(w, h int, v float64) *Plane {
	p := NewPlane(w, h)
	for i := range p.Pix {
		p.Pix[i] = v
	}
	return p
}

// squarePlane has a filled square of 255 on a zero background.
func squarePlane(w, h, x0, y0, size int) *Plane {
	p := NewPlane(w, h)
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			p.Set(x, y, 255)
		}
	}
	return p
}

func TestHSV8(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		h, s, v float64
	}{
		{name: "red", r: 255, h: 0, s: 255, v: 255},
		{name: "green", g: 255, h: 60, s: 255, v: 255},
		{name: "blue", b: 255, h: 120, s: 255, v: 255},
		{name: "black", h: 0, s: 0, v: 0},
		{name: "gray", r: 128, g: 128, b: 128, h: 0, s: 0, v: 128},
		{name: "yellow", r: 255, g: 255, h: 30, s: 255, v: 255},
		{name: "dark olive", r: 60, g: 90, b: 30, h: 45, s: 170, v: 90},
		{name: "magenta", r: 255, b: 255, h: 150, s: 255, v: 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := hsv8(tt.r, tt.g, tt.b)
			assert.InDelta(t, tt.h, h, 1e-9)
			assert.InDelta(t, tt.s, s, 1e-9)
			assert.InDelta(t, tt.v, v, 1e-9)
		})
	}
}

func TestNewFrameDropsAlphaAndOffsets(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{10, 20, 30, 255})
	img.SetRGBA(1, 0, color.RGBA{40, 50, 60, 255})

	f := NewFrame(img)
	assert.Equal(t, []uint8{10, 20, 30, 40, 50, 60}, f.Pix)

	sub := img.SubImage(image.Rect(1, 0, 2, 1))
	f = NewFrame(sub)
	assert.Equal(t, 1, f.Width)
	assert.Equal(t, []uint8{40, 50, 60}, f.Pix)

	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.SetGray(0, 0, color.Gray{Y: 77})
	assert.Equal(t, []uint8{77, 77, 77}, NewFrame(gray).Pix)
}

func TestConvertColor(t *testing.T) {
	n := NewNative()

	planes, err := n.ConvertColor(solidFrame(3, 2, 0, 255, 0), HSV)
	require.NoError(t, err)
	require.Len(t, planes, 3)
	assert.Equal(t, 60.0, planes[0].At(2, 1))
	assert.Equal(t, 255.0, planes[1].At(0, 0))
	assert.Equal(t, 255.0, planes[2].At(1, 1))

	planes, err = n.ConvertColor(solidFrame(3, 2, 100, 150, 200), Gray)
	require.NoError(t, err)
	require.Len(t, planes, 1)
	// 0.299*100 + 0.587*150 + 0.114*200 = 140.75
	assert.Equal(t, 141.0, planes[0].At(0, 0))

	_, err = n.ConvertColor(solidFrame(1, 1, 0, 0, 0), ColorSpace(9))
	assert.Error(t, err)

	_, err = n.ConvertColor(&Frame{Width: 2, Height: 2}, Gray)
	assert.Error(t, err)
}

func TestHueWrapsBelow180(t *testing.T) {
	// Pure magenta-red hues near 360 degrees round to 180 and wrap to 0.
	h, _, _ := hsv8(255, 0, 1)
	assert.Less(t, h, 180.0)
}

func TestGaussianBlurKeepsConstant(t *testing.T) {
	out, err := NewNative().GaussianBlur(constPlane(9, 7, 77), 5)
	require.NoError(t, err)
	for _, v := range out.Pix {
		assert.Equal(t, 77.0, v)
	}

	_, err = NewNative().GaussianBlur(constPlane(3, 3, 1), 4)
	assert.Error(t, err)
}

func TestGaussianKernelsAreNormalised(t *testing.T) {
	for _, k := range []int{1, 3, 5, 7, 9, 11} {
		var sum float64
		for _, v := range gaussianKernel(k) {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "k=%d", k)
	}
}

func TestBorderIndex(t *testing.T) {
	assert.Equal(t, 1, borderReflect101.index(-1, 5))
	assert.Equal(t, 2, borderReflect101.index(-2, 5))
	assert.Equal(t, 3, borderReflect101.index(5, 5))
	assert.Equal(t, 0, borderReplicate.index(-3, 5))
	assert.Equal(t, 4, borderReplicate.index(7, 5))
	assert.Equal(t, 0, borderReflect101.index(3, 1))
}

func TestAdaptiveThreshold(t *testing.T) {
	n := NewNative()

	// A flat plane exceeds its own mean minus the offset everywhere.
	out, err := n.AdaptiveThreshold(constPlane(20, 20, 90), 11, 2)
	require.NoError(t, err)
	assert.Equal(t, 400, out.CountNonZero())

	// A dark square on a bright background: the square's interior is below
	// its local mean only near the border, and its centre is flat again.
	p := constPlane(40, 40, 200)
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			p.Set(x, y, 20)
		}
	}
	out, err = n.AdaptiveThreshold(p, 11, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(10, 10))
	assert.Equal(t, 255.0, out.At(20, 20))
	assert.Equal(t, 255.0, out.At(0, 0))

	_, err = n.AdaptiveThreshold(p, 1, 2)
	assert.Error(t, err)
}

func TestEdgeDetect(t *testing.T) {
	n := NewNative()

	out, err := n.EdgeDetect(constPlane(16, 16, 128), 50, 150)
	require.NoError(t, err)
	assert.Equal(t, 0, out.CountNonZero())

	// Vertical step edge between columns 7 and 8.
	p := NewPlane(16, 16)
	for y := 0; y < 16; y++ {
		for x := 8; x < 16; x++ {
			p.Set(x, y, 255)
		}
	}
	out, err = n.EdgeDetect(p, 50, 150)
	require.NoError(t, err)
	for y := 0; y < 16; y++ {
		assert.Equal(t, 255.0, out.At(7, y)+out.At(8, y), "row %d", y)
		assert.Equal(t, 0.0, out.At(2, y))
		assert.Equal(t, 0.0, out.At(13, y))
	}
	assert.Equal(t, 16, out.CountNonZero())
}

func TestEdgeDetectSwapsThresholds(t *testing.T) {
	p := squarePlane(20, 20, 5, 5, 10)
	a, err := NewNative().EdgeDetect(p, 50, 150)
	require.NoError(t, err)
	b, err := NewNative().EdgeDetect(p, 150, 50)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestGradientMagnitude(t *testing.T) {
	n := NewNative()

	out, err := n.GradientMagnitude(constPlane(8, 8, 42))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Mean())

	// Horizontal ramp: dx = (x+1 - (x-1)) * (1+2+1) = 8 per unit slope.
	p := NewPlane(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			p.Set(x, y, float64(x*10))
		}
	}
	out, err = n.GradientMagnitude(p)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, out.At(4, 4), 1e-9)
	// Reflect-101 borders cancel the derivative at the edges.
	assert.InDelta(t, 0.0, out.At(0, 4), 1e-9)
}

func TestBackendFactory(t *testing.T) {
	ops, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "native", ops.Name())

	ops, err = New(BackendNative)
	require.NoError(t, err)
	assert.Equal(t, "native", ops.Name())

	_, err = New("cuda")
	assert.Error(t, err)
}
