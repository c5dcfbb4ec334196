// Package classifier runs the one-shot classification pipeline: decode the
// image, score it with the model while the three feature extractors run
// alongside, then fuse everything into a single prediction.
package classifier

import (
	"context"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/nfnt/resize"
	"golang.org/x/sync/errgroup"

	"github.com/Brownie44l1/meloscan/internal/features"
	"github.com/Brownie44l1/meloscan/internal/fusion"
	"github.com/Brownie44l1/meloscan/internal/model"
	"github.com/Brownie44l1/meloscan/internal/preprocess"
	"github.com/Brownie44l1/meloscan/internal/vision"
)

//go:generate go tool mockgen -destination=mock_predictor_test.go -package=classifier . Predictor

// Predictor scores a preprocessed NHWC tensor. *model.Engine and
// *model.Loader implement it.
type Predictor interface {
	Predict(ctx context.Context, input []float32) (model.ScoreVector, error)
}

// Options configures a Classifier.
type Options struct {
	// ValidityThreshold is the adjusted confidence a prediction needs to
	// keep its class. See fusion.DefaultValidityThreshold.
	ValidityThreshold float64

	// AnalysisMaxSide, when positive, shrinks the image the feature
	// extractors see so its longest side is at most this many pixels.
	// The model input is unaffected.
	AnalysisMaxSide int

	// MaxPixels rejects images whose header declares more pixels. Zero
	// means preprocess.DefaultMaxPixels.
	MaxPixels int

	Logger *slog.Logger
}

// Classifier is safe for concurrent use. Calls share only the predictor
// and the vision backend.
type Classifier struct {
	predictor Predictor
	extractor *features.Extractor
	threshold float64
	maxSide   int
	maxPixels int
	logger    *slog.Logger
}

// New returns a Classifier. A nil predictor makes every call fail with
// model.ErrModelNotLoaded.
func New(p Predictor, ops vision.Ops, opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		predictor: p,
		extractor: features.NewExtractor(ops),
		threshold: opts.ValidityThreshold,
		maxSide:   opts.AnalysisMaxSide,
		maxPixels: opts.MaxPixels,
		logger:    logger,
	}
}

// Threshold is the validity threshold in use.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Backend is the name of the vision backend in use.
func (c *Classifier) Backend() string { return c.extractor.Backend() }

// Degradation names a feature family that fell back to zeros and why.
type Degradation struct {
	Family string `json:"family"`
	Cause  string `json:"cause"`
}

// Result is a fused prediction plus the families that were degraded.
type Result struct {
	fusion.Prediction
	Degraded []Degradation `json:"degraded_features,omitempty"`
}

// DegradedFamilies lists the names of the degraded families.
func (r *Result) DegradedFamilies() []string {
	names := make([]string, len(r.Degraded))
	for i, d := range r.Degraded {
		names[i] = d.Family
	}
	return names
}

// Classify decodes an image from r and classifies it. Decode failures wrap
// preprocess.ErrImageDecode.
func (c *Classifier) Classify(ctx context.Context, r io.Reader) (*Result, error) {
	img, _, err := preprocess.Decode(r, c.maxPixels)
	if err != nil {
		return nil, err
	}
	return c.ClassifyImage(ctx, img)
}

// ClassifyImage classifies an already decoded image. Only model failures
// are returned as errors; extractor failures are reported in
// Result.Degraded.
func (c *Classifier) ClassifyImage(ctx context.Context, img image.Image) (*Result, error) {
	if c.predictor == nil {
		return nil, model.ErrModelNotLoaded
	}
	start := time.Now()
	frame := vision.NewFrame(c.analysisImage(img))

	var (
		scores  model.ScoreVector
		visual  features.Outcome[features.VisualFeatures]
		shape   features.Outcome[features.ShapeFeatures]
		surface features.Outcome[features.SurfaceFeatures]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scores, err = c.predictor.Predict(gctx, preprocess.Tensor(img, model.InputSize))
		return err
	})
	g.Go(func() error {
		visual = c.extractor.Visual(frame)
		return nil
	})
	g.Go(func() error {
		shape = c.extractor.Shape(frame)
		return nil
	})
	g.Go(func() error {
		surface = c.extractor.Surface(frame)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Prediction: fusion.Decide(scores, visual.Features, shape.Features, surface.Features, c.threshold),
	}
	res.degrade(features.FamilyVisual, visual.Err)
	res.degrade(features.FamilyShape, shape.Err)
	res.degrade(features.FamilySurface, surface.Err)

	for _, d := range res.Degraded {
		c.logger.Warn("feature extraction degraded",
			"family", d.Family,
			"backend", c.extractor.Backend(),
			"error", d.Cause)
	}
	c.logger.Debug("classification finished",
		"class", res.PredictedClass,
		"confidence", res.Confidence,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"elapsed", time.Since(start))

	return res, nil
}

func (r *Result) degrade(family string, err error) {
	if err == nil {
		return
	}
	r.Degraded = append(r.Degraded, Degradation{Family: family, Cause: err.Error()})
}

func (c *Classifier) analysisImage(img image.Image) image.Image {
	if c.maxSide <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= c.maxSide && b.Dy() <= c.maxSide {
		return img
	}
	return resize.Thumbnail(uint(c.maxSide), uint(c.maxSide), img, resize.Bilinear)
}
