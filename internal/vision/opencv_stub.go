//go:build !gocv

package vision

import "errors"

// ErrOpenCVUnavailable is returned when the binary was built without the gocv tag.
var ErrOpenCVUnavailable = errors.New("opencv backend requires building with -tags gocv")

// NewOpenCV reports that OpenCV support was not compiled in.
func NewOpenCV() (Ops, error) {
	return nil, ErrOpenCVUnavailable
}
