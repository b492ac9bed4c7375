package procrustes

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
)

func TestSuperimposeSimilarShapes(t *testing.T) {
	base := toothLike()
	shapes := []models.Shape{
		base,
		base.Rotate(math.Pi / 2).Scale(2).Translate(r2.Vec{X: 100, Y: 50}),
		base.Rotate(-0.7).Scale(0.5),
	}

	res, err := Superimpose(shapes, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Aligned, len(shapes))
	assert.True(t, res.Converged)

	want, err := Normalize(base)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(res.Mean.Vector(), want.Vector(), approx))
	for i, a := range res.Aligned {
		assert.True(t, cmp.Equal(a.Vector(), want.Vector(), approx), "shape %d", i)
	}
}

func TestSuperimposeMeanIsNormalized(t *testing.T) {
	shapes := []models.Shape{
		toothLike(),
		{
			{X: 0, Y: 0}, {X: 5, Y: 1}, {X: 9, Y: 5}, {X: 9, Y: 12},
			{X: 6, Y: 16}, {X: 1, Y: 15}, {X: -2, Y: 10}, {X: -2, Y: 4},
		},
	}
	res, err := Superimpose(shapes, Options{MaxIterations: 50, Tolerance: 1e-12})
	require.NoError(t, err)

	mean := res.Mean.Shape()
	assert.InDelta(t, 1, RMSSize(mean), 1e-9)
	assert.InDelta(t, 0, mean.Centroid().X, 1e-9)
	assert.InDelta(t, 0, mean.Centroid().Y, 1e-9)
	assert.LessOrEqual(t, res.Iterations, 50)
}

func TestSuperimposeIterationCap(t *testing.T) {
	shapes := []models.Shape{
		toothLike(),
		toothLike().Translate(r2.Vec{X: 1}).Rotate(0.1),
		{
			{X: 0, Y: 0}, {X: 5, Y: 1}, {X: 9, Y: 5}, {X: 9, Y: 12},
			{X: 6, Y: 16}, {X: 1, Y: 15}, {X: -2, Y: 10}, {X: -2, Y: 4},
		},
	}
	res, err := Superimpose(shapes, Options{MaxIterations: 1, Tolerance: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Converged)
}

func TestSuperimposeStopsWhenMeanSettles(t *testing.T) {
	// Copies of one shape average to the anchor itself, so the first
	// round already measures no change.
	base := toothLike()
	shapes := []models.Shape{base, base.Rotate(1.2).Scale(3), base.Translate(r2.Vec{X: -4, Y: 9})}

	res, err := Superimpose(shapes, Options{MaxIterations: 10, Tolerance: 1e-10})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
}

func TestSuperimposeErrors(t *testing.T) {
	_, err := Superimpose(nil, DefaultOptions())
	assert.Error(t, err)

	_, err = Superimpose([]models.Shape{toothLike(), toothLike()[:5]}, DefaultOptions())
	assert.ErrorIs(t, err, ErrShapeMismatch)

	flat := models.Shape{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}
	_, err = Superimpose([]models.Shape{flat}, DefaultOptions())
	assert.ErrorIs(t, err, ErrDegenerateShape)
}
