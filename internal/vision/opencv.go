//go:build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// OpenCV implements Ops on top of gocv. Every Mat is closed before the
// method returns.
type OpenCV struct{}

// NewOpenCV returns the OpenCV backend.
func NewOpenCV() (Ops, error) { return &OpenCV{}, nil }

func (*OpenCV) Name() string { return "opencv" }

func (*OpenCV) ConvertColor(f *Frame, space ColorSpace) ([]*Plane, error) {
	if err := checkFrame(f); err != nil {
		return nil, err
	}
	bgr, err := frameToMat(f)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	switch space {
	case HSV:
		hsv := gocv.NewMat()
		defer hsv.Close()
		gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

		channels := gocv.Split(hsv)
		defer func() {
			for _, ch := range channels {
				ch.Close()
			}
		}()
		planes := make([]*Plane, len(channels))
		for i, ch := range channels {
			planes[i] = matToPlane(ch)
		}
		return planes, nil
	case Gray:
		gray := gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
		return []*Plane{matToPlane(gray)}, nil
	default:
		return nil, fmt.Errorf("unsupported color space %s", space)
	}
}

func (*OpenCV) GaussianBlur(p *Plane, ksize int) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	if err := checkKernel(ksize); err != nil {
		return nil, err
	}
	src, err := planeToMat(p)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Point{ksize, ksize}, 0, 0, gocv.BorderDefault)
	return matToPlane(dst), nil
}

func (*OpenCV) AdaptiveThreshold(p *Plane, blockSize int, offset float64) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	if err := checkKernel(blockSize); err != nil {
		return nil, err
	}
	src, err := planeToMat(p)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.AdaptiveThreshold(src, &dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, blockSize, float32(offset))
	return matToPlane(dst), nil
}

func (*OpenCV) FindContours(binary *Plane) ([]Contour, error) {
	if err := checkPlane(binary); err != nil {
		return nil, err
	}
	src, err := planeToMat(binary)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	found := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]Contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		contours = append(contours, Contour(found.At(i).ToPoints()))
	}
	return contours, nil
}

func (*OpenCV) EdgeDetect(p *Plane, low, high float64) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	src, err := planeToMat(p)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(src, &edges, float32(low), float32(high))
	return matToPlane(edges), nil
}

func (*OpenCV) GradientMagnitude(p *Plane) (*Plane, error) {
	if err := checkPlane(p); err != nil {
		return nil, err
	}
	src, err := planeToMat(p)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dx := gocv.NewMat()
	defer dx.Close()
	dy := gocv.NewMat()
	defer dy.Close()
	gocv.Sobel(src, &dx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(src, &dy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(dx, dy, &mag)

	data, err := mag.DataPtrFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading gradient magnitude: %w", err)
	}
	out := NewPlane(p.Width, p.Height)
	copy(out.Pix, data)
	return out, nil
}

// frameToMat builds a BGR Mat, the channel order OpenCV expects.
func frameToMat(f *Frame) (gocv.Mat, error) {
	bgr := make([]byte, len(f.Pix))
	for i := 0; i < len(f.Pix); i += 3 {
		bgr[i], bgr[i+1], bgr[i+2] = f.Pix[i+2], f.Pix[i+1], f.Pix[i]
	}
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, bgr)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	return mat, nil
}

// planeToMat builds an 8-bit single-channel Mat, saturating samples.
func planeToMat(p *Plane) (gocv.Mat, error) {
	data := make([]byte, len(p.Pix))
	for i, v := range p.Pix {
		switch {
		case v <= 0:
			data[i] = 0
		case v >= 255:
			data[i] = 255
		default:
			data[i] = uint8(v + 0.5)
		}
	}
	mat, err := gocv.NewMatFromBytes(p.Height, p.Width, gocv.MatTypeCV8U, data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert plane: %w", err)
	}
	return mat, nil
}

func matToPlane(m gocv.Mat) *Plane {
	out := NewPlane(m.Cols(), m.Rows())
	for i, b := range m.ToBytes() {
		out.Pix[i] = float64(b)
	}
	return out
}
