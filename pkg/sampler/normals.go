package sampler

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
)

const minEdgeLength = 1e-9

// Normals returns the outward unit normal at every landmark of the closed
// outline s. Each normal is the average of the normals of the two edges
// meeting at the landmark. Outward is decided by the winding of the outline,
// so it does not depend on the traversal direction.
func Normals(s models.Shape) ([]r2.Vec, error) {
	if len(s) < 3 {
		return nil, fmt.Errorf("normals of %d-point outline: %w", len(s), ErrDegenerateNormal)
	}
	sign := 1.0
	if s.SignedArea() < 0 {
		sign = -1
	}

	normals := make([]r2.Vec, len(s))
	for i := range s {
		n, err := normalAt(s, i)
		if err != nil {
			return nil, err
		}
		normals[i] = r2.Scale(sign, n)
	}
	return normals, nil
}

// normalAt returns the right-hand unit normal at landmark i, averaged over
// its incoming and outgoing edges.
func normalAt(s models.Shape, i int) (r2.Vec, error) {
	n := len(s)
	prev, p, next := s[(i-1+n)%n], s[i], s[(i+1)%n]

	var sum r2.Vec
	edges := 0
	for _, e := range []r2.Vec{r2.Sub(p, prev), r2.Sub(next, p)} {
		if r2.Norm(e) < minEdgeLength {
			continue
		}
		sum = r2.Add(sum, r2.Unit(r2.Vec{X: e.Y, Y: -e.X}))
		edges++
	}
	if edges == 0 || r2.Norm(sum) < minEdgeLength {
		return r2.Vec{}, fmt.Errorf("landmark %d at %v: %w", i, p, ErrDegenerateNormal)
	}
	return r2.Unit(sum), nil
}
