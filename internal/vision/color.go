package vision

import "math"

// hsv8 converts one 8-bit RGB pixel the way OpenCV's 8-bit RGB2HSV does:
// H is degrees halved into [0,180), S and V span [0,255]. All three are
// rounded, and a hue that rounds up to 180 wraps to 0.
func hsv8(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	v = max(rf, gf, bf)
	diff := v - min(rf, gf, bf)
	if v > 0 {
		s = math.Round(diff * 255 / v)
	}
	if diff == 0 {
		return 0, s, v
	}

	var deg float64
	switch v {
	case rf:
		deg = 60 * (gf - bf) / diff
	case gf:
		deg = 120 + 60*(bf-rf)/diff
	default:
		deg = 240 + 60*(rf-gf)/diff
	}
	if deg < 0 {
		deg += 360
	}

	h = math.Round(deg / 2)
	if h >= 180 {
		h -= 180
	}
	return h, s, v
}

// luma is the ITU-R BT.601 grayscale value rounded to an integer.
func luma(r, g, b uint8) float64 {
	return math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}
