package models

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Shape is an ordered outline of landmark points.
//
// Point i is connected to point (i+1) mod N. The order is what gives two
// shapes their point-to-point correspondence, so it must never be changed.
type Shape []r2.Vec

// ShapeFromVector builds a shape from an interleaved x0,y0,x1,y1,... vector.
// A trailing odd element is ignored.
func ShapeFromVector(v []float64) Shape {
	s := make(Shape, len(v)/2)
	for i := range s {
		s[i] = r2.Vec{X: v[2*i], Y: v[2*i+1]}
	}
	return s
}

// Len returns the number of landmarks.
func (s Shape) Len() int { return len(s) }

// Centroid returns the mean of all landmarks.
func (s Shape) Centroid() r2.Vec {
	var c r2.Vec
	if len(s) == 0 {
		return c
	}
	for _, p := range s {
		c = r2.Add(c, p)
	}
	return r2.Scale(1/float64(len(s)), c)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Vector flattens the shape into an interleaved x0,y0,x1,y1,... vector.
func (s Shape) Vector() []float64 {
	v := make([]float64, 2*len(s))
	for i, p := range s {
		v[2*i] = p.X
		v[2*i+1] = p.Y
	}
	return v
}

// Translate returns the shape shifted by d.
func (s Shape) Translate(d r2.Vec) Shape {
	out := make(Shape, len(s))
	for i, p := range s {
		out[i] = r2.Add(p, d)
	}
	return out
}

// Scale returns the shape scaled about the origin.
func (s Shape) Scale(f float64) Shape {
	out := make(Shape, len(s))
	for i, p := range s {
		out[i] = r2.Scale(f, p)
	}
	return out
}

// Rotate returns the shape rotated counter-clockwise about the origin by
// angle radians.
func (s Shape) Rotate(angle float64) Shape {
	out := make(Shape, len(s))
	for i, p := range s {
		out[i] = r2.Rotate(p, angle, r2.Vec{})
	}
	return out
}

// SignedArea returns the shoelace area of the closed outline. The sign
// encodes the traversal direction.
func (s Shape) SignedArea() float64 {
	var a float64
	for i, p := range s {
		q := s[(i+1)%len(s)]
		a += r2.Cross(p, q)
	}
	return a / 2
}
