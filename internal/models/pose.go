package models

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Pose is a similarity transform from normalized shape space to image
// space: x' = Scale * R(Rotation) * x + Translation.
type Pose struct {
	Translation r2.Vec
	Scale       float64

	// Rotation is counter-clockwise in radians
	Rotation float64
}

// IdentityPose returns the transform that leaves points unchanged.
func IdentityPose() Pose {
	return Pose{Scale: 1}
}

// ApplyPoint maps a single point into image space.
func (p Pose) ApplyPoint(v r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(p.Scale, r2.Rotate(v, p.Rotation, r2.Vec{})), p.Translation)
}

// Apply maps every point of s into image space.
func (p Pose) Apply(s Shape) Shape {
	out := make(Shape, len(s))
	for i, v := range s {
		out[i] = p.ApplyPoint(v)
	}
	return out
}

// InvertPoint maps an image-space point back to normalized shape space.
// The pose scale must be non-zero.
func (p Pose) InvertPoint(v r2.Vec) r2.Vec {
	return r2.Rotate(r2.Scale(1/p.Scale, r2.Sub(v, p.Translation)), -p.Rotation, r2.Vec{})
}

// Invert maps every point of s back to normalized shape space.
func (p Pose) Invert(s Shape) Shape {
	out := make(Shape, len(s))
	for i, v := range s {
		out[i] = p.InvertPoint(v)
	}
	return out
}

// Compose returns the pose equivalent to applying inner first, then p.
func (p Pose) Compose(inner Pose) Pose {
	return Pose{
		Translation: p.ApplyPoint(inner.Translation),
		Scale:       p.Scale * inner.Scale,
		Rotation:    p.Rotation + inner.Rotation,
	}
}
