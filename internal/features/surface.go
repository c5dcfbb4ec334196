package features

import "github.com/Brownie44l1/meloscan/internal/vision"

const (
	surfaceBlurSize = 5
	localWindow     = 5
)

func (e *Extractor) surface(f *vision.Frame) (SurfaceFeatures, error) {
	gray, err := e.gray(f)
	if err != nil {
		return SurfaceFeatures{}, err
	}
	blurred, err := e.ops.GaussianBlur(gray, surfaceBlurSize)
	if err != nil {
		return SurfaceFeatures{}, err
	}
	local := vision.LocalStdDev(blurred, localWindow)

	h, s, v, err := e.hsv(f)
	if err != nil {
		return SurfaceFeatures{}, err
	}
	spread := (h.StdDev()/180 + s.StdDev()/255 + v.StdDev()/255) / 3

	grad, err := e.ops.GradientMagnitude(gray)
	if err != nil {
		return SurfaceFeatures{}, err
	}

	return SurfaceFeatures{
		MatteAppearance: max(1-local.Mean()/255, 0),
		ColorUniformity: max(1-spread, 0),
		TextureContrast: clamp(grad.Mean()/255, 0, 1),
	}, nil
}
