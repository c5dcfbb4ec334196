package features

import "github.com/Brownie44l1/meloscan/internal/vision"

// HSV bands in OpenCV 8-bit units.
var (
	greenBand  = vision.Range{Lo: [3]float64{35, 40, 40}, Hi: [3]float64{85, 255, 255}}
	groundBand = vision.Range{Lo: [3]float64{20, 80, 80}, Hi: [3]float64{35, 255, 255}}
)

const (
	stripeBlurSize  = 5
	stripeCannyLow  = 50
	stripeCannyHigh = 150

	saturationWeight = 0.6
	valueWeight      = 0.4
)

func (e *Extractor) visual(f *vision.Frame) (VisualFeatures, error) {
	h, s, v, err := e.hsv(f)
	if err != nil {
		return VisualFeatures{}, err
	}
	total := float64(f.Len())

	gray, err := e.gray(f)
	if err != nil {
		return VisualFeatures{}, err
	}
	blurred, err := e.ops.GaussianBlur(gray, stripeBlurSize)
	if err != nil {
		return VisualFeatures{}, err
	}
	edges, err := e.ops.EdgeDetect(blurred, stripeCannyLow, stripeCannyHigh)
	if err != nil {
		return VisualFeatures{}, err
	}

	return VisualFeatures{
		GreenCoverage:   float64(vision.InRange(h, s, v, greenBand)) / total,
		ColorSaturation: saturationWeight*s.Mean()/255 + valueWeight*v.Mean()/255,
		StripePattern:   float64(edges.CountNonZero()) / total,
		GroundSpot:      float64(vision.InRange(h, s, v, groundBand)) / total,
	}, nil
}
