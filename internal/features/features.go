// Package features computes the handcrafted color, shape and surface
// descriptors that are fused with the classifier's scores.
//
// Extractors never return errors. A failure inside one of them, including a
// panic raised by a vision backend, yields an all-zero record and is reported
// through Outcome.Err so callers can tell a degraded record from a real one.
package features

import (
	"fmt"

	"github.com/Brownie44l1/meloscan/internal/vision"
)

// VisualFeatures describes the rind color. Every field lies in [0,1].
type VisualFeatures struct {
	GreenCoverage   float64 `json:"green_coverage"`
	ColorSaturation float64 `json:"color_saturation"`
	StripePattern   float64 `json:"stripe_pattern"`
	GroundSpot      float64 `json:"ground_spot"`
}

// ShapeFeatures describes the silhouette of the largest contour.
// ShapeScore and Roundness lie in [0,1], AspectRatio in [0,2].
type ShapeFeatures struct {
	ShapeScore  float64 `json:"shape_score"`
	Roundness   float64 `json:"roundness"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// SurfaceFeatures describes reflectance and texture. Every field lies in [0,1].
type SurfaceFeatures struct {
	MatteAppearance float64 `json:"matte_appearance"`
	ColorUniformity float64 `json:"color_uniformity"`
	TextureContrast float64 `json:"texture_contrast"`
}

// Outcome is the result of one extractor. When Err is set, Features is the
// zero record.
type Outcome[T any] struct {
	Features T
	Err      error
}

// Degraded reports whether the extractor fell back to zeros.
func (o Outcome[T]) Degraded() bool { return o.Err != nil }

// Family names, used in logs and in degraded_features.
const (
	FamilyVisual  = "visual"
	FamilyShape   = "shape"
	FamilySurface = "surface"
)

// Extractor runs the three feature families against one vision backend.
// It holds no per-call state and is safe for concurrent use when the
// backend is.
type Extractor struct {
	ops vision.Ops
}

// NewExtractor returns an Extractor backed by ops.
func NewExtractor(ops vision.Ops) *Extractor {
	return &Extractor{ops: ops}
}

// Backend is the name of the vision backend in use.
func (e *Extractor) Backend() string { return e.ops.Name() }

// Visual computes VisualFeatures for f.
func (e *Extractor) Visual(f *vision.Frame) Outcome[VisualFeatures] {
	return guard(FamilyVisual, func() (VisualFeatures, error) { return e.visual(f) })
}

// Shape computes ShapeFeatures for f.
func (e *Extractor) Shape(f *vision.Frame) Outcome[ShapeFeatures] {
	return guard(FamilyShape, func() (ShapeFeatures, error) { return e.shape(f) })
}

// Surface computes SurfaceFeatures for f.
func (e *Extractor) Surface(f *vision.Frame) Outcome[SurfaceFeatures] {
	return guard(FamilySurface, func() (SurfaceFeatures, error) { return e.surface(f) })
}

func guard[T any](family string, fn func() (T, error)) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[T]{Err: fmt.Errorf("%s features: panic: %v", family, r)}
		}
	}()

	v, err := fn()
	if err != nil {
		return Outcome[T]{Err: fmt.Errorf("%s features: %w", family, err)}
	}
	return Outcome[T]{Features: v}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

// gray converts f to a single luma plane.
func (e *Extractor) gray(f *vision.Frame) (*vision.Plane, error) {
	planes, err := e.ops.ConvertColor(f, vision.Gray)
	if err != nil {
		return nil, err
	}
	if len(planes) != 1 {
		return nil, fmt.Errorf("gray conversion returned %d planes", len(planes))
	}
	return planes[0], nil
}

// hsv converts f to hue, saturation and value planes.
func (e *Extractor) hsv(f *vision.Frame) (h, s, v *vision.Plane, err error) {
	planes, err := e.ops.ConvertColor(f, vision.HSV)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(planes) != 3 {
		return nil, nil, nil, fmt.Errorf("hsv conversion returned %d planes", len(planes))
	}
	return planes[0], planes[1], planes[2], nil
}
