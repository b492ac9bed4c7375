// Package sampler reads 1D profiles of a pyramid level along landmark
// normals and searches them for the offset that best matches a reference
// boundary profile.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"toothfit/pkg/pyramid"
)

var (
	// ErrDegenerateNormal is returned when no normal direction can be
	// derived at a landmark because its neighbouring edges have no length
	// or cancel out.
	ErrDegenerateNormal = errors.New("degenerate landmark normal")

	// ErrProfileLength is returned for a reference profile that is empty or
	// has an even number of samples.
	ErrProfileLength = errors.New("reference profile must have odd length")
)

// Matcher selects how a sampled profile is compared with a reference.
type Matcher int

const (
	// MatchSSD minimizes the sum of squared differences of profiles
	// normalized to unit absolute sum.
	MatchSSD Matcher = iota

	// MatchNCC maximizes the normalized cross-correlation.
	MatchNCC
)

// ParseMatcher converts a configuration name into a Matcher.
func ParseMatcher(name string) (Matcher, error) {
	switch strings.ToLower(name) {
	case "", "ssd":
		return MatchSSD, nil
	case "ncc":
		return MatchNCC, nil
	default:
		return 0, fmt.Errorf("unknown profile matcher %q (must be ssd or ncc)", name)
	}
}

func (m Matcher) String() string {
	switch m {
	case MatchSSD:
		return "ssd"
	case MatchNCC:
		return "ncc"
	default:
		return fmt.Sprintf("Matcher(%d)", int(m))
	}
}

// Sampler samples profiles from one pyramid. It holds no mutable state and
// may be shared between goroutines.
type Sampler struct {
	pyr     *pyramid.Pyramid
	matcher Matcher
}

// New creates a sampler over p.
func New(p *pyramid.Pyramid, m Matcher) *Sampler {
	return &Sampler{pyr: p, matcher: m}
}

// Pyramid returns the pyramid the sampler reads from.
func (s *Sampler) Pyramid() *pyramid.Pyramid { return s.pyr }

// Displacement is the result of a profile search at one landmark.
type Displacement struct {
	// Offset is the best position along the normal, in level pixels
	Offset int

	// Cost is the match cost at Offset; lower is better for both matchers
	Cost float64

	// Touched reports that part of the searched profile fell outside the
	// image and was clamped to the border
	Touched bool
}

// SampleProfile returns 2k+1 values along normal through point, one per
// offset from -k to +k level pixels. point is in level-0 pixel coordinates
// and normal must have unit length. Samples outside the level are clamped to
// the nearest valid pixel and reported through the touched result.
func (s *Sampler) SampleProfile(point, normal r2.Vec, level, k int) ([]float64, bool, error) {
	f, err := s.pyr.At(level)
	if err != nil {
		return nil, false, err
	}
	if k < 0 {
		return nil, false, fmt.Errorf("negative profile half-length %d", k)
	}
	if n := r2.Norm(normal); n < 1e-9 || math.IsNaN(n) {
		return nil, false, fmt.Errorf("sample profile at %v: %w", point, ErrDegenerateNormal)
	}

	center := r2.Scale(1/pyramid.Scale(level), point)
	profile := make([]float64, 2*k+1)
	touched := false
	for j := -k; j <= k; j++ {
		q := r2.Add(center, r2.Scale(float64(j), normal))
		v, clamped := bilinear(f.Width, f.Height, f.Data, q.X, q.Y)
		profile[j+k] = v
		touched = touched || clamped
	}
	return profile, touched, nil
}

// BestDisplacement searches offsets in [-k, k] for the position whose local
// profile best matches reference. The local profile has the same length as
// reference. Ties are broken towards the smallest absolute offset.
func (s *Sampler) BestDisplacement(point, normal r2.Vec, level, k int, reference []float64) (Displacement, error) {
	if len(reference) == 0 || len(reference)%2 == 0 {
		return Displacement{}, fmt.Errorf("reference of %d samples: %w", len(reference), ErrProfileLength)
	}
	m := len(reference) / 2
	long, touched, err := s.SampleProfile(point, normal, level, k+m)
	if err != nil {
		return Displacement{}, err
	}
	ref := Normalize(s.matcher, reference)

	best := Displacement{Cost: math.Inf(1), Touched: touched}
	for _, d := range searchOrder(k) {
		window := long[d+k : d+k+2*m+1]
		cost := s.cost(window, ref)
		if cost < best.Cost {
			best.Offset = d
			best.Cost = cost
		}
	}
	return best, nil
}

// cost compares a raw window with an already normalized reference.
func (s *Sampler) cost(window, ref []float64) float64 {
	g := Normalize(s.matcher, window)
	switch s.matcher {
	case MatchNCC:
		// Both vectors are standardized; their mean product is the
		// correlation coefficient.
		return -floats.Dot(g, ref) / float64(len(g))
	default:
		d := floats.Distance(g, ref, 2)
		return d * d
	}
}

// Normalize returns a copy of p prepared for matching. For MatchSSD the copy
// is divided by its absolute sum; for MatchNCC it is standardized to zero
// mean and unit variance. Flat profiles normalize to zeros.
func Normalize(m Matcher, p []float64) []float64 {
	out := append([]float64(nil), p...)
	switch m {
	case MatchNCC:
		mean, std := stat.PopMeanStdDev(out, nil)
		if std < 1e-12 {
			return make([]float64, len(out))
		}
		floats.AddConst(-mean, out)
		floats.Scale(1/std, out)
	default:
		sum := floats.Norm(out, 1)
		if sum < 1e-12 {
			return make([]float64, len(out))
		}
		floats.Scale(1/sum, out)
	}
	return out
}

// searchOrder lists offsets in [-k, k] by increasing absolute value.
func searchOrder(k int) []int {
	order := make([]int, 0, 2*k+1)
	order = append(order, 0)
	for d := 1; d <= k; d++ {
		order = append(order, -d, d)
	}
	return order
}

// bilinear interpolates a row-major field at (x, y). Coordinates outside the
// field are clamped to the border and reported.
func bilinear(width, height int, data []float64, x, y float64) (float64, bool) {
	clamped := false
	if math.IsNaN(x) || math.IsNaN(y) {
		x, y, clamped = 0, 0, true
	}
	maxX, maxY := float64(width-1), float64(height-1)
	if x < 0 || x > maxX {
		x = math.Max(0, math.Min(maxX, x))
		clamped = true
	}
	if y < 0 || y > maxY {
		y = math.Max(0, math.Min(maxY, y))
		clamped = true
	}

	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := min(x0+1, width-1), min(y0+1, height-1)
	fx, fy := x-float64(x0), y-float64(y0)

	top := (1-fx)*data[y0*width+x0] + fx*data[y0*width+x1]
	bottom := (1-fx)*data[y1*width+x0] + fx*data[y1*width+x1]
	return (1-fy)*top + fy*bottom, clamped
}
