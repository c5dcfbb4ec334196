// Package preprocess turns uploaded bytes into the classifier's input tensor.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrImageDecode is returned for input that is not a decodable image.
var ErrImageDecode = errors.New("image decode failed")

// DefaultMaxPixels bounds width*height of an accepted image.
const DefaultMaxPixels = 36_000_000

// Decode reads a JPEG, PNG, GIF, BMP, TIFF or WebP image. The header is
// checked first and images declaring more than maxPixels pixels are
// rejected before their pixel data is decoded. maxPixels <= 0 means
// DefaultMaxPixels.
func Decode(r io.Reader, maxPixels int) (image.Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	var head bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty %s image", ErrImageDecode, format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %s image is %dx%d, limit is %d pixels",
			ErrImageDecode, format, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: empty %s image", ErrImageDecode, format)
	}
	return img, format, nil
}

// Tensor resizes img to size x size with bilinear interpolation and maps
// every channel value to pixel/127.5 - 1. The result is NHWC with a batch
// of one, channels in RGB order.
func Tensor(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]float32, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := (y*width + x) * 3
			data[i] = normalize(r)
			data[i+1] = normalize(g)
			data[i+2] = normalize(b)
		}
	}
	return data
}

// normalize maps a 16-bit color channel to 8 bits and then to [-1, 1].
func normalize(c uint32) float32 {
	return float32(c>>8)/127.5 - 1.0
}
