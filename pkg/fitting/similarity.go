package fitting

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
	"toothfit/pkg/procrustes"
)

// solveSimilarity returns the similarity transform T minimizing
// sum |T(src[i]) - dst[i]|^2. With both sets centered, the optimum is
// scale*cos = sum(s.d)/sum|s|^2 and scale*sin = sum(s x d)/sum|s|^2.
func solveSimilarity(src, dst models.Shape) (models.Pose, error) {
	if len(src) != len(dst) {
		return models.Pose{}, fmt.Errorf("similarity between %d and %d points: %w",
			len(src), len(dst), procrustes.ErrShapeMismatch)
	}
	cs, cd := src.Centroid(), dst.Centroid()

	var dot, cross, norm2 float64
	for i := range src {
		s := r2.Sub(src[i], cs)
		d := r2.Sub(dst[i], cd)
		dot += r2.Dot(s, d)
		cross += r2.Cross(s, d)
		norm2 += r2.Norm2(s)
	}
	if norm2 < 1e-12 {
		return models.Pose{}, fmt.Errorf("similarity from collapsed outline: %w", procrustes.ErrDegenerateShape)
	}
	a, b := dot/norm2, cross/norm2
	scale := math.Hypot(a, b)
	if scale < 1e-12 || math.IsNaN(scale) {
		return models.Pose{}, fmt.Errorf("similarity onto collapsed targets: %w", procrustes.ErrDegenerateShape)
	}

	pose := models.Pose{Scale: scale, Rotation: math.Atan2(b, a)}
	pose.Translation = r2.Sub(cd, pose.ApplyPoint(cs))
	return pose, nil
}
