package preprocess

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodePNG(t *testing.T) {
	img, format, err := Decode(bytes.NewReader(encodePNG(t, solid(8, 6, color.RGBA{10, 20, 30, 255}))), 0)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode(strings.NewReader("definitely not an image"), 0)
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestDecodeTruncated(t *testing.T) {
	data := encodePNG(t, solid(32, 32, color.RGBA{1, 2, 3, 255}))
	_, _, err := Decode(bytes.NewReader(data[:len(data)/2]), 0)
	assert.ErrorIs(t, err, ErrImageDecode)
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h
// grayscale image with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter and interlace stay 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsHugeDimensions(t *testing.T) {
	_, _, err := Decode(bytes.NewReader(pngHeader(40000, 40000)), 0)
	require.ErrorIs(t, err, ErrImageDecode)
	assert.Contains(t, err.Error(), "40000x40000")
}

func TestDecodeHonoursPixelLimit(t *testing.T) {
	data := encodePNG(t, solid(8, 6, color.RGBA{10, 20, 30, 255}))

	_, _, err := Decode(bytes.NewReader(data), 47)
	require.ErrorIs(t, err, ErrImageDecode)
	assert.Contains(t, err.Error(), "limit is 47 pixels")

	img, _, err := Decode(bytes.NewReader(data), 48)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestDecodeJPEGAfterHeaderCheck(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(300, 200, color.RGBA{0, 200, 0, 255}), nil))

	img, format, err := Decode(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 300, 200), img.Bounds())
}

func TestTensorShapeAndNormalization(t *testing.T) {
	img := solid(40, 30, color.RGBA{255, 0, 51, 255})
	data := Tensor(img, 224)
	require.Len(t, data, 224*224*3)

	// Every pixel is identical, so bilinear resampling keeps the values.
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, -1.0, data[1], 1e-6)
	assert.InDelta(t, 51/127.5-1, data[2], 1e-6)

	last := len(data) - 3
	assert.InDelta(t, 1.0, data[last], 1e-6)
	assert.InDelta(t, -1.0, data[last+1], 1e-6)
}

func TestTensorRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), uint8((x + y) * 2), 255})
		}
	}
	for _, v := range Tensor(img, 224) {
		assert.GreaterOrEqual(t, v, float32(-1.0))
		assert.LessOrEqual(t, v, float32(1.0))
	}
}

func TestTensorDeterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 17, 23))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	assert.Equal(t, Tensor(img, 224), Tensor(img, 224))
}
