// Package filter turns a grayscale radiograph into the edge-strength field
// the fitting engine searches: median blur, bilateral blur, then the Scharr
// gradient magnitude.
package filter

import (
	"math"
	"sort"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

// Options holds the preprocessing parameters.
type Options struct {
	// MedianSize is the odd side length of the median window.
	MedianSize int

	// BilateralDiameter is the diameter of the bilateral neighbourhood.
	BilateralDiameter int

	// SigmaColor and SigmaSpace are the bilateral range and spatial
	// standard deviations.
	SigmaColor float64
	SigmaSpace float64
}

// DefaultOptions returns the parameters used for dental radiographs.
func DefaultOptions() Options {
	return Options{
		MedianSize:        5,
		BilateralDiameter: 17,
		SigmaColor:        9,
		SigmaSpace:        200,
	}
}

// Process runs the full preprocessing chain with the default options.
func Process(f models.Field) models.Field {
	return ProcessWith(f, DefaultOptions())
}

// ProcessWith runs the preprocessing chain. The result has the size of f and
// holds non-negative gradient magnitudes.
func ProcessWith(f models.Field, opts Options) models.Field {
	out := process(f, opts)
	monitoring.Logf("filter: processed %dx%d field with %s backend, max edge %.1f",
		f.Width, f.Height, Backend, out.Max())
	return out
}

// MedianBlur replaces every value by the median of the size x size window
// around it. Windows are clamped at the border.
func MedianBlur(f models.Field, size int) models.Field {
	if size < 2 {
		return f.Clone()
	}
	r := size / 2
	out := models.NewField(f.Width, f.Height)
	window := make([]float64, 0, (2*r+1)*(2*r+1))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					window = append(window, f.At(clamp(x+dx, f.Width), clamp(y+dy, f.Height)))
				}
			}
			sort.Float64s(window)
			out.Set(x, y, window[len(window)/2])
		}
	}
	return out
}

// Bilateral smooths f while keeping edges: each neighbour within
// diameter/2 is weighted by its spatial distance and by its value
// difference from the centre.
func Bilateral(f models.Field, diameter int, sigmaColor, sigmaSpace float64) models.Field {
	r := diameter / 2
	if r < 1 || sigmaColor <= 0 || sigmaSpace <= 0 {
		return f.Clone()
	}

	type tap struct {
		dx, dy int
		w      float64
	}
	var taps []tap
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(r*r) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))})
		}
	}
	colorScale := -1 / (2 * sigmaColor * sigmaColor)

	out := models.NewField(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := f.At(x, y)
			var sum, norm float64
			for _, t := range taps {
				v := f.At(clamp(x+t.dx, f.Width), clamp(y+t.dy, f.Height))
				w := t.w * math.Exp((v-c)*(v-c)*colorScale)
				sum += w * v
				norm += w
			}
			out.Set(x, y, sum/norm)
		}
	}
	return out
}

// Scharr returns the gradient magnitude of f using the 3x3 Scharr kernels,
// divided by 16 so a unit step has unit response.
func Scharr(f models.Field) models.Field {
	out := models.NewField(f.Width, f.Height)
	at := func(x, y int) float64 { return f.At(clamp(x, f.Width), clamp(y, f.Height)) }
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			gx := 3*(at(x+1, y-1)-at(x-1, y-1)) + 10*(at(x+1, y)-at(x-1, y)) + 3*(at(x+1, y+1)-at(x-1, y+1))
			gy := 3*(at(x-1, y+1)-at(x-1, y-1)) + 10*(at(x, y+1)-at(x, y-1)) + 3*(at(x+1, y+1)-at(x+1, y-1))
			out.Set(x, y, math.Hypot(gx, gy)/16)
		}
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
