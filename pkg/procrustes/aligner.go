// Package procrustes normalizes and aligns landmark shapes so they can be
// compared independently of translation, scale and rotation.
package procrustes

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
)

var (
	// ErrDegenerateShape is returned when a shape has no spatial extent,
	// i.e. all of its points coincide.
	ErrDegenerateShape = errors.New("degenerate shape")

	// ErrShapeMismatch is returned when two shapes that must correspond
	// have different point counts.
	ErrShapeMismatch = errors.New("shape point count mismatch")
)

// degenerateSize is the RMS size below which a shape is treated as a point.
const degenerateSize = 1e-12

// AlignedShape is a shape with zero centroid and unit RMS size, optionally
// rotated onto a reference. It can only be produced by this package.
type AlignedShape struct {
	points models.Shape
}

// Shape returns a copy of the aligned points.
func (a AlignedShape) Shape() models.Shape { return a.points.Clone() }

// Vector returns the aligned points as an interleaved 2N vector.
func (a AlignedShape) Vector() []float64 { return a.points.Vector() }

// Len returns the number of landmarks.
func (a AlignedShape) Len() int { return len(a.points) }

// MoveToOrigin returns s translated so its centroid is (0, 0).
func MoveToOrigin(s models.Shape) models.Shape {
	return s.Translate(r2.Scale(-1, s.Centroid()))
}

// RMSSize returns the root-mean-square distance from the centroid to the
// points of s.
func RMSSize(s models.Shape) float64 {
	if len(s) == 0 {
		return 0
	}
	c := s.Centroid()
	var sum float64
	for _, p := range s {
		sum += r2.Norm2(r2.Sub(p, c))
	}
	return math.Sqrt(sum / float64(len(s)))
}

// NormalizeScale returns s scaled about the origin so that its RMS
// point-to-centroid distance is 1.
func NormalizeScale(s models.Shape) (models.Shape, error) {
	size := RMSSize(s)
	if size < degenerateSize {
		return nil, fmt.Errorf("normalize %d-point shape: %w", len(s), ErrDegenerateShape)
	}
	return s.Scale(1 / size), nil
}

// Normalize centers s and scales it to unit size without rotating it.
func Normalize(s models.Shape) (AlignedShape, error) {
	scaled, err := NormalizeScale(MoveToOrigin(s))
	if err != nil {
		return AlignedShape{}, err
	}
	return AlignedShape{points: scaled}, nil
}

// Align centers and scales s, then rotates it to minimize the sum of squared
// distances to reference.
//
// The reference must already be centered and unit sized. This is not checked:
// a reference that is not normalized yields a wrong rotation, not an error.
func Align(s, reference models.Shape) (AlignedShape, error) {
	if len(s) != len(reference) {
		return AlignedShape{}, fmt.Errorf("align %d points to %d: %w", len(s), len(reference), ErrShapeMismatch)
	}
	normalized, err := Normalize(s)
	if err != nil {
		return AlignedShape{}, err
	}
	angle := alignmentAngle(normalized.points, reference)
	return AlignedShape{points: normalized.points.Rotate(-angle)}, nil
}

// alignmentAngle is the least-squares angle between shape (x, y) and
// reference (w, z). Rotating the shape by the negated angle aligns it.
func alignmentAngle(shape, reference models.Shape) float64 {
	var num, den float64
	for i, p := range shape {
		q := reference[i]
		num += q.X*p.Y - q.Y*p.X
		den += q.X*p.X + q.Y*p.Y
	}
	return math.Atan2(num, den)
}

// SumSquaredDistance returns the sum over points of the squared Euclidean
// distance between a and b.
func SumSquaredDistance(a, b models.Shape) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("distance between %d and %d points: %w", len(a), len(b), ErrShapeMismatch)
	}
	d := floats.Distance(a.Vector(), b.Vector(), 2)
	return d * d, nil
}
