//go:build gocv

package pyramid

import (
	"image"

	"gocv.io/x/gocv"

	"toothfit/internal/models"
)

// Backend names the implementation compiled in.
const Backend = "opencv"

// downsample runs cv::pyrDown on a 64-bit float copy of f. pyrDown uses the
// same 1-4-6-4-1 kernel and keeps the even pixels; the destination size is
// forced to floor(w/2) x floor(h/2) to match the Go path.
func downsample(f models.Field) models.Field {
	src := gocv.NewMatWithSize(f.Height, f.Width, gocv.MatTypeCV64F)
	defer src.Close()
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			src.SetDoubleAt(y, x, f.At(x, y))
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.PyrDown(src, &dst, image.Pt(f.Width/2, f.Height/2), gocv.BorderReplicate)

	out := models.NewField(f.Width/2, f.Height/2)
	if dst.Empty() || dst.Cols() != out.Width || dst.Rows() != out.Height {
		return reduce(f)
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			out.Set(x, y, dst.GetDoubleAt(y, x))
		}
	}
	return out
}
