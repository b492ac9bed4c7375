package procrustes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

// Options bounds the generalized Procrustes iteration.
type Options struct {
	// MaxIterations caps the number of align/average rounds
	MaxIterations int

	// Tolerance is the sum of squared change of the mean shape between two
	// rounds below which the mean is considered stable
	Tolerance float64
}

// DefaultOptions returns the iteration limits used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 20,
		Tolerance:     1e-8,
	}
}

// Superimposition is the result of aligning a training set to its mean.
type Superimposition struct {
	Aligned    []AlignedShape
	Mean       AlignedShape
	Iterations int
	Converged  bool
}

// Superimpose aligns all shapes to a common mean: every shape is aligned to
// the current mean, the aligned shapes are averaged, and the new mean is
// normalized and anchored to the orientation of the first shape. This repeats
// until the mean stops moving or the iteration cap is reached.
func Superimpose(shapes []models.Shape, opts Options) (*Superimposition, error) {
	if len(shapes) == 0 {
		return nil, fmt.Errorf("superimpose: no shapes: %w", ErrDegenerateShape)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	n := len(shapes[0])
	for i, s := range shapes {
		if len(s) != n {
			return nil, fmt.Errorf("superimpose shape %d has %d points, want %d: %w", i, len(s), n, ErrShapeMismatch)
		}
	}

	anchor, err := Normalize(shapes[0])
	if err != nil {
		return nil, fmt.Errorf("superimpose shape 0: %w", err)
	}
	mean := anchor

	result := &Superimposition{}
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		aligned, err := alignAll(shapes, mean.points)
		if err != nil {
			return nil, err
		}

		avg := make([]float64, 2*n)
		for _, a := range aligned {
			floats.Add(avg, a.Vector())
		}
		floats.Scale(1/float64(len(aligned)), avg)

		next, err := Align(models.ShapeFromVector(avg), anchor.points)
		if err != nil {
			return nil, fmt.Errorf("superimpose mean at iteration %d: %w", iter, err)
		}

		change, err := SumSquaredDistance(next.points, mean.points)
		if err != nil {
			return nil, fmt.Errorf("superimpose mean at iteration %d: %w", iter, err)
		}
		mean = next
		result.Iterations = iter
		if change < opts.Tolerance {
			result.Converged = true
			break
		}
	}

	aligned, err := alignAll(shapes, mean.points)
	if err != nil {
		return nil, err
	}
	result.Aligned = aligned
	result.Mean = mean

	monitoring.Logf("procrustes: aligned %d shapes of %d points in %d iterations (converged=%v)",
		len(shapes), n, result.Iterations, result.Converged)
	return result, nil
}

func alignAll(shapes []models.Shape, reference models.Shape) ([]AlignedShape, error) {
	aligned := make([]AlignedShape, len(shapes))
	for i, s := range shapes {
		a, err := Align(s, reference)
		if err != nil {
			return nil, fmt.Errorf("align shape %d: %w", i, err)
		}
		aligned[i] = a
	}
	return aligned, nil
}
