// Package pyramid builds multi-resolution representations of a field.
// Level 0 is the input; each further level is smoothed and halved.
package pyramid

import (
	"errors"
	"fmt"
	"math"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

var (
	// ErrInvalidLevelCount is returned when a pyramid cannot have the
	// requested number of levels.
	ErrInvalidLevelCount = errors.New("invalid pyramid level count")

	// ErrLevelOutOfRange is returned when a level outside [0, Levels()) is
	// requested.
	ErrLevelOutOfRange = errors.New("pyramid level out of range")
)

// DefaultMinSize is the smallest side length, in pixels, a level may have.
const DefaultMinSize = 8

// binomial is the 5-tap approximation of a Gaussian used before halving.
var binomial = [5]float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// Pyramid is an immutable stack of fields. It is safe for concurrent reads.
type Pyramid struct {
	levels []models.Field
}

// Build returns a pyramid with levelCount levels over f. Every level must
// be at least minSize pixels on each side; minSize <= 0 selects
// DefaultMinSize.
func Build(f models.Field, levelCount, minSize int) (*Pyramid, error) {
	if levelCount < 1 {
		return nil, fmt.Errorf("build pyramid with %d levels: %w", levelCount, ErrInvalidLevelCount)
	}
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	if f.Empty() || f.Width < minSize || f.Height < minSize {
		return nil, fmt.Errorf("build pyramid: input %dx%d below minimum size %d: %w",
			f.Width, f.Height, minSize, ErrInvalidLevelCount)
	}

	p := &Pyramid{levels: make([]models.Field, 0, levelCount)}
	p.levels = append(p.levels, f.Clone())
	for k := 1; k < levelCount; k++ {
		prev := p.levels[k-1]
		if prev.Width/2 < minSize || prev.Height/2 < minSize {
			return nil, fmt.Errorf("build pyramid: level %d would be %dx%d, below minimum size %d: %w",
				k, prev.Width/2, prev.Height/2, minSize, ErrInvalidLevelCount)
		}
		p.levels = append(p.levels, Downsample(prev))
	}

	monitoring.Logf("pyramid: built %d levels from %dx%d with %s backend", levelCount, f.Width, f.Height, Backend)
	return p, nil
}

// Levels returns the number of levels.
func (p *Pyramid) Levels() int { return len(p.levels) }

// At returns the field at the given level.
func (p *Pyramid) At(level int) (models.Field, error) {
	if level < 0 || level >= len(p.levels) {
		return models.Field{}, fmt.Errorf("level %d not in [0, %d): %w", level, len(p.levels), ErrLevelOutOfRange)
	}
	return p.levels[level], nil
}

// Scale returns the size of one pixel of the given level in level-0 pixels.
func Scale(level int) float64 {
	return math.Ldexp(1, level)
}

// Downsample smooths f with the 5-tap binomial kernel and keeps the even
// pixels, so level pixel x covers level-0 pixel 2x. The result is
// floor(w/2) x floor(h/2). Borders are extended by replication.
func Downsample(f models.Field) models.Field {
	return downsample(f)
}

// reduce is the pure Go Downsample.
func reduce(f models.Field) models.Field {
	tmp := models.NewField(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			var v float64
			for i, w := range binomial {
				v += w * f.At(clamp(x+i-2, f.Width), y)
			}
			tmp.Set(x, y, v)
		}
	}

	out := models.NewField(f.Width/2, f.Height/2)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			var v float64
			for i, w := range binomial {
				v += w * tmp.At(2*x, clamp(2*y+i-2, f.Height))
			}
			out.Set(x, y, v)
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
