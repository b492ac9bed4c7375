//go:build !gocv

package filter

import "toothfit/internal/models"

// Backend names the implementation compiled in.
const Backend = "go"

func process(f models.Field, opts Options) models.Field {
	f = MedianBlur(f, opts.MedianSize)
	f = Bilateral(f, opts.BilateralDiameter, opts.SigmaColor, opts.SigmaSpace)
	return Scharr(f)
}
