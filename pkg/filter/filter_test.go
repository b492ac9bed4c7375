package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toothfit/internal/models"
)

func constant(w, h int, v float64) models.Field {
	f := models.NewField(w, h)
	for i := range f.Data {
		f.Data[i] = v
	}
	return f
}

// step is dark left of column edge and bright from it on.
func step(w, h, edge int) models.Field {
	f := models.NewField(w, h)
	for y := 0; y < h; y++ {
		for x := edge; x < w; x++ {
			f.Set(x, y, 100)
		}
	}
	return f
}

func TestMedianBlurRemovesSpeckle(t *testing.T) {
	f := constant(9, 9, 20)
	f.Set(4, 4, 255)
	f.Set(1, 7, 0)
	out := MedianBlur(f, 5)
	for _, v := range out.Data {
		assert.Equal(t, 20.0, v)
	}
	assert.Equal(t, 255.0, f.At(4, 4), "input is untouched")
	assert.Equal(t, f, MedianBlur(f, 1))
}

func TestBilateralKeepsEdges(t *testing.T) {
	f := step(20, 6, 10)
	out := Bilateral(f, 9, 9, 200)
	// Values across the step differ by far more than sigmaColor, so the two
	// sides do not mix.
	assert.InDelta(t, 0, out.At(9, 3), 1e-6)
	assert.InDelta(t, 100, out.At(10, 3), 1e-6)

	noisy := constant(10, 10, 50)
	noisy.Set(5, 5, 56)
	smoothed := Bilateral(noisy, 9, 9, 200)
	assert.Less(t, smoothed.At(5, 5), 56.0)
	assert.Greater(t, smoothed.At(5, 5), 50.0)
}

func TestScharrRespondsToEdges(t *testing.T) {
	flat := Scharr(constant(8, 8, 42))
	for _, v := range flat.Data {
		assert.Equal(t, 0.0, v)
	}

	g := Scharr(step(12, 6, 6))
	// Central difference across a step of 100: (3+10+3)*100/16.
	assert.InDelta(t, 100, g.At(5, 3), 1e-9)
	assert.InDelta(t, 100, g.At(6, 3), 1e-9)
	assert.Equal(t, 0.0, g.At(2, 3))
	assert.Equal(t, 0.0, g.At(9, 3))
}

func TestProcess(t *testing.T) {
	f := step(24, 24, 12)
	f.Set(3, 3, 255)
	out := Process(f)
	require.Equal(t, f.Width, out.Width)
	require.Equal(t, f.Height, out.Height)
	for _, v := range out.Data {
		assert.GreaterOrEqual(t, v, 0.0)
	}
	// The speckle is gone and the step remains the strongest feature.
	assert.Less(t, out.At(3, 3), 1.0)
	assert.InDelta(t, 100, out.At(11, 12), 1e-9)
	assert.InDelta(t, 100, out.Max(), 1e-9)
}
