// Package fusion blends the classifier's scores with the handcrafted
// features into one decision and decomposes the decided class into the
// variety and ripeness fields reported to clients.
package fusion

import (
	"github.com/Brownie44l1/meloscan/internal/features"
	"github.com/Brownie44l1/meloscan/internal/model"
)

// Blend weights. Changing any of them changes classification outcomes.
const (
	ModelWeight   = 0.7
	FeatureWeight = 0.3

	SaturationWeight = 0.3
	StripeWeight     = 0.3
	RoundnessWeight  = 0.2
	UniformityWeight = 0.2
)

// DefaultValidityThreshold is the adjusted confidence below which a
// prediction is reported as not_valid.
const DefaultValidityThreshold = 0.65

// Prediction is the fused result of one classification.
type Prediction struct {
	PredictedClass      model.Class              `json:"predicted_class"`
	Confidence          float64                  `json:"confidence"`
	ConfidenceBreakdown map[model.Class]float64  `json:"confidence_breakdown"`
	Visual              features.VisualFeatures  `json:"visual_analysis"`
	Shape               features.ShapeFeatures   `json:"shape_analysis"`
	Surface             features.SurfaceFeatures `json:"surface_analysis"`
	IsValid             bool                     `json:"is_valid"`
	IsCrimsonsweet      bool                     `json:"is_crimsonsweet"`
	Variety             Variety                  `json:"variety"`
	Ripeness            Ripeness                 `json:"ripeness"`
}

// FeatureConfidence is the weighted composite of the handcrafted features
// that take part in the blend.
func FeatureConfidence(v features.VisualFeatures, s features.ShapeFeatures, u features.SurfaceFeatures) float64 {
	return SaturationWeight*v.ColorSaturation +
		StripeWeight*v.StripePattern +
		RoundnessWeight*s.Roundness +
		UniformityWeight*u.ColorUniformity
}

// AdjustedConfidence blends the top class score with the feature
// confidence, clamped to [0,1].
func AdjustedConfidence(top, featureConfidence float64) float64 {
	adjusted := ModelWeight*top + FeatureWeight*featureConfidence
	return max(0, min(adjusted, 1))
}

// Decide picks the final class. The argmax class stands when the adjusted
// confidence reaches threshold; otherwise the prediction is not_valid.
func Decide(scores model.ScoreVector, v features.VisualFeatures, s features.ShapeFeatures, u features.SurfaceFeatures, threshold float64) Prediction {
	top, score := scores.Max()
	adjusted := AdjustedConfidence(float64(score), FeatureConfidence(v, s, u))

	predicted := top
	if adjusted < threshold {
		predicted = model.NotValid
	}
	labels := Decompose(predicted)

	return Prediction{
		PredictedClass:      predicted,
		Confidence:          adjusted,
		ConfidenceBreakdown: scores.Breakdown(),
		Visual:              v,
		Shape:               s,
		Surface:             u,
		IsValid:             labels.IsValid,
		IsCrimsonsweet:      labels.IsCrimsonsweet,
		Variety:             labels.Variety,
		Ripeness:            labels.Ripeness,
	}
}
