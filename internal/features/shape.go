package features

import (
	"math"

	"github.com/Brownie44l1/meloscan/internal/vision"
)

const (
	thresholdBlockSize = 11
	thresholdOffset    = 2

	// Polygon tolerance as a fraction of the contour perimeter.
	approxEpsilon = 0.015

	maxAspectRatio = 2
)

func (e *Extractor) shape(f *vision.Frame) (ShapeFeatures, error) {
	gray, err := e.gray(f)
	if err != nil {
		return ShapeFeatures{}, err
	}
	binary, err := e.ops.AdaptiveThreshold(gray, thresholdBlockSize, thresholdOffset)
	if err != nil {
		return ShapeFeatures{}, err
	}
	contours, err := e.ops.FindContours(binary)
	if err != nil {
		return ShapeFeatures{}, err
	}
	return describeShape(contours), nil
}

// describeShape measures the contour with the largest area. Ties keep the
// first contour.
func describeShape(contours []vision.Contour) ShapeFeatures {
	if len(contours) == 0 {
		return ShapeFeatures{}
	}
	largest, area := contours[0], contours[0].Area()
	for _, c := range contours[1:] {
		if a := c.Area(); a > area {
			largest, area = c, a
		}
	}

	perimeter := largest.Perimeter()
	if perimeter == 0 {
		return ShapeFeatures{}
	}

	vertices := len(largest.ApproxPoly(approxEpsilon * perimeter))
	box := largest.BoundingRect()

	var aspect float64
	if box.Dy() > 0 {
		aspect = float64(box.Dx()) / float64(box.Dy())
	}

	return ShapeFeatures{
		ShapeScore:  clamp(1/float64(max(vertices, 1)), 0, 1),
		Roundness:   clamp(4*math.Pi*area/(perimeter*perimeter), 0, 1),
		AspectRatio: clamp(aspect, 0, maxAspectRatio),
	}
}
