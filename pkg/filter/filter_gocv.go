//go:build gocv

package filter

import (
	"math"

	"gocv.io/x/gocv"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

// Backend names the implementation compiled in.
const Backend = "opencv"

func process(f models.Field, opts Options) models.Field {
	src, err := toMat(f)
	if err != nil {
		monitoring.Logf("filter: opencv conversion failed, using go filters: %v", err)
		return Scharr(Bilateral(MedianBlur(f, opts.MedianSize), opts.BilateralDiameter, opts.SigmaColor, opts.SigmaSpace))
	}
	defer src.Close()

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(src, &median, opts.MedianSize)

	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(median, &smooth, opts.BilateralDiameter, opts.SigmaColor, opts.SigmaSpace)

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Scharr(smooth, &gx, gocv.MatTypeCV64F, 1, 0, 1.0/16, 0, gocv.BorderDefault)
	gocv.Scharr(smooth, &gy, gocv.MatTypeCV64F, 0, 1, 1.0/16, 0, gocv.BorderDefault)

	out := models.NewField(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			out.Set(x, y, math.Hypot(gx.GetDoubleAt(y, x), gy.GetDoubleAt(y, x)))
		}
	}
	return out
}

// toMat converts f to an 8-bit single channel matrix, saturating values
// outside [0, 255].
func toMat(f models.Field) (gocv.Mat, error) {
	buf := make([]byte, len(f.Data))
	for i, v := range f.Data {
		buf[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC1, buf)
}
