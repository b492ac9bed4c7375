package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
	"toothfit/pkg/pyramid"
)

func buildPyramid(t *testing.T, f models.Field, levels int) *pyramid.Pyramid {
	t.Helper()
	p, err := pyramid.Build(f, levels, 4)
	require.NoError(t, err)
	return p
}

func TestSampleProfileAlongNormal(t *testing.T) {
	f := models.NewField(32, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			f.Set(x, y, float64(x))
		}
	}
	s := New(buildPyramid(t, f, 1), MatchSSD)

	profile, touched, err := s.SampleProfile(r2.Vec{X: 10, Y: 10}, r2.Vec{X: 1}, 0, 3)
	require.NoError(t, err)
	assert.False(t, touched)
	assert.Equal(t, []float64{7, 8, 9, 10, 11, 12, 13}, profile)

	// Half-pixel positions are interpolated.
	profile, _, err = s.SampleProfile(r2.Vec{X: 10.5, Y: 3}, r2.Vec{Y: 1}, 0, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10.5, 10.5, 10.5}, profile, 1e-12)
}

func TestSampleProfileClampsAtBorder(t *testing.T) {
	f := models.NewField(16, 16)
	for x := 0; x < 16; x++ {
		f.Set(x, 5, float64(x))
	}
	s := New(buildPyramid(t, f, 1), MatchSSD)

	profile, touched, err := s.SampleProfile(r2.Vec{X: 1, Y: 5}, r2.Vec{X: 1}, 0, 3)
	require.NoError(t, err)
	assert.True(t, touched)
	assert.Equal(t, []float64{0, 0, 0, 1, 2, 3, 4}, profile)
}

func TestSampleProfileAtCoarseLevel(t *testing.T) {
	f := models.NewField(64, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			f.Set(x, y, float64(y))
		}
	}
	s := New(buildPyramid(t, f, 2), MatchSSD)

	// Level-0 point (20, 40) is (10, 20) at level 1, where a unit step is two
	// level-0 rows.
	profile, touched, err := s.SampleProfile(r2.Vec{X: 20, Y: 40}, r2.Vec{Y: 1}, 1, 1)
	require.NoError(t, err)
	assert.False(t, touched)
	assert.InDeltaSlice(t, []float64{38, 40, 42}, profile, 1e-9)

	_, _, err = s.SampleProfile(r2.Vec{X: 20, Y: 40}, r2.Vec{Y: 1}, 2, 1)
	assert.ErrorIs(t, err, pyramid.ErrLevelOutOfRange)
}

func TestSampleProfileDegenerateNormal(t *testing.T) {
	s := New(buildPyramid(t, models.NewField(8, 8), 1), MatchSSD)
	_, _, err := s.SampleProfile(r2.Vec{X: 4, Y: 4}, r2.Vec{}, 0, 2)
	assert.ErrorIs(t, err, ErrDegenerateNormal)
	_, _, err = s.SampleProfile(r2.Vec{X: 4, Y: 4}, r2.Vec{X: math.NaN()}, 0, 2)
	assert.ErrorIs(t, err, ErrDegenerateNormal)
}

func TestBestDisplacementFindsPeak(t *testing.T) {
	for _, matcher := range []Matcher{MatchSSD, MatchNCC} {
		t.Run(matcher.String(), func(t *testing.T) {
			f := models.NewField(32, 32)
			f.Set(19, 16, 1)
			s := New(buildPyramid(t, f, 1), matcher)

			ref := PeakProfile(2)
			reference, err := ref.Reference(0, 0)
			require.NoError(t, err)

			d, err := s.BestDisplacement(r2.Vec{X: 16, Y: 16}, r2.Vec{X: 1}, 0, 5, reference)
			require.NoError(t, err)
			assert.Equal(t, 3, d.Offset)
			assert.False(t, d.Touched)

			d, err = s.BestDisplacement(r2.Vec{X: 22, Y: 16}, r2.Vec{X: 1}, 0, 5, reference)
			require.NoError(t, err)
			assert.Equal(t, -3, d.Offset)
		})
	}
}

func TestBestDisplacementTieBreaksTowardsZero(t *testing.T) {
	// A flat field matches every offset equally well.
	f := models.NewField(32, 32)
	for i := range f.Data {
		f.Data[i] = 2
	}
	s := New(buildPyramid(t, f, 1), MatchSSD)
	reference, err := PeakProfile(1).Reference(0, 0)
	require.NoError(t, err)

	d, err := s.BestDisplacement(r2.Vec{X: 16, Y: 16}, r2.Vec{X: 1}, 0, 4, reference)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Offset)

	// Two equal peaks at -2 and +2: the negative one is visited first at the
	// same distance.
	f = models.NewField(32, 32)
	f.Set(14, 16, 1)
	f.Set(18, 16, 1)
	s = New(buildPyramid(t, f, 1), MatchSSD)
	d, err = s.BestDisplacement(r2.Vec{X: 16, Y: 16}, r2.Vec{X: 1}, 0, 4, reference)
	require.NoError(t, err)
	assert.Equal(t, -2, d.Offset)
}

func TestBestDisplacementRejectsEvenReference(t *testing.T) {
	s := New(buildPyramid(t, models.NewField(8, 8), 1), MatchSSD)
	_, err := s.BestDisplacement(r2.Vec{X: 4, Y: 4}, r2.Vec{X: 1}, 0, 2, []float64{0, 1})
	assert.ErrorIs(t, err, ErrProfileLength)
	_, err = s.BestDisplacement(r2.Vec{X: 4, Y: 4}, r2.Vec{X: 1}, 0, 2, nil)
	assert.ErrorIs(t, err, ErrProfileLength)
}

func TestParseMatcher(t *testing.T) {
	m, err := ParseMatcher("NCC")
	require.NoError(t, err)
	assert.Equal(t, MatchNCC, m)

	m, err = ParseMatcher("")
	require.NoError(t, err)
	assert.Equal(t, MatchSSD, m)

	_, err = ParseMatcher("mahalanobis")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.25, -0.5, 0.25}, Normalize(MatchSSD, []float64{1, -2, 1}), 1e-12)
	assert.Equal(t, []float64{0, 0, 0}, Normalize(MatchSSD, []float64{0, 0, 0}))
	assert.Equal(t, []float64{0, 0, 0}, Normalize(MatchNCC, []float64{3, 3, 3}))

	g := Normalize(MatchNCC, []float64{1, 2, 3})
	assert.InDelta(t, 0, g[0]+g[1]+g[2], 1e-12)
	assert.InDelta(t, 3, g[0]*g[0]+g[1]*g[1]+g[2]*g[2], 1e-12)
}
