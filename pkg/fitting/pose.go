package fitting

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
	"toothfit/pkg/pyramid"
)

// baseScaleHint is the outline scale, in pixels of the coarsest level, that
// a click places.
const baseScaleHint = 12

// PoseFromClick seeds a fit centred on a clicked level-0 point with the given
// level-0 scale and no rotation.
func PoseFromClick(point r2.Vec, scaleHint float64) models.Pose {
	return models.Pose{Translation: point, Scale: scaleHint}
}

// DefaultScaleHint returns the level-0 seed scale for a click made while
// viewing level of a pyramid with levels levels. The hint is
// 12·2^(levels-level-1) pixels of the viewed level, which is the same
// outline whatever level is shown: 12 pixels at the coarsest level.
func DefaultScaleHint(levels, level int) float64 {
	return math.Ldexp(baseScaleHint, levels-level-1) * pyramid.Scale(level)
}
