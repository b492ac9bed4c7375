//go:build !gocv

package pyramid

import "toothfit/internal/models"

// Backend names the implementation compiled in.
const Backend = "go"

func downsample(f models.Field) models.Field {
	return reduce(f)
}
