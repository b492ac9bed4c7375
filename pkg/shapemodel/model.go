// Package shapemodel implements a point distribution model: the mean of a
// Procrustes-aligned training set plus the principal modes of variation
// around it.
package shapemodel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
	"toothfit/pkg/procrustes"
)

var (
	// ErrDimensionMismatch is returned when a parameter vector does not have
	// one entry per retained mode.
	ErrDimensionMismatch = errors.New("parameter dimension mismatch")

	// ErrInsufficientTraining is returned when fewer than two training
	// shapes are supplied; no variation can be measured from one shape.
	ErrInsufficientTraining = errors.New("need at least two training shapes")
)

// Options configures model construction.
type Options struct {
	// VarianceFraction is the fraction of total variance the retained modes
	// must explain, in (0, 1]
	VarianceFraction float64

	// Procrustes bounds the mean-shape iteration
	Procrustes procrustes.Options
}

// DefaultOptions returns the construction options used when none are
// configured.
func DefaultOptions() Options {
	return Options{
		VarianceFraction: 0.98,
		Procrustes:       procrustes.DefaultOptions(),
	}
}

// Model is an immutable statistical shape model. It is safe for concurrent
// use once built.
type Model struct {
	mean     []float64  // 2N average of the aligned training shapes
	modes    *mat.Dense // 2N x t, one orthonormal mode per column
	values   []float64  // t retained eigenvalues, non-increasing
	spectrum []float64  // all 2N eigenvalues, non-increasing
	total    float64
	samples  int
}

// Build aligns the training shapes, computes their covariance about the mean
// and keeps the smallest prefix of principal modes that explains at least
// opts.VarianceFraction of the total variance.
func Build(training []models.Shape, opts Options) (*Model, error) {
	if len(training) < 2 {
		return nil, fmt.Errorf("build shape model from %d shapes: %w", len(training), ErrInsufficientTraining)
	}
	if opts.VarianceFraction <= 0 || opts.VarianceFraction > 1 {
		return nil, fmt.Errorf("variance fraction %v outside (0, 1]", opts.VarianceFraction)
	}

	sup, err := procrustes.Superimpose(training, opts.Procrustes)
	if err != nil {
		return nil, fmt.Errorf("build shape model: %w", err)
	}

	dim := 2 * sup.Mean.Len()
	data := mat.NewDense(len(sup.Aligned), dim, nil)
	for i, a := range sup.Aligned {
		data.SetRow(i, a.Vector())
	}

	// The model mean is the plain average of the aligned shapes, which is
	// also the center the covariance is taken about. The normalized
	// Procrustes mean only serves as the alignment reference.
	mean := make([]float64, dim)
	col := make([]float64, len(sup.Aligned))
	for j := range mean {
		mean[j] = stat.Mean(mat.Col(col, j, data), nil)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, fmt.Errorf("build shape model: eigendecomposition of %dx%d covariance failed", dim, dim)
	}
	ascending := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// EigenSym orders eigenvalues ascending; the model wants them descending.
	spectrum := make([]float64, dim)
	order := make([]int, dim)
	for i := range spectrum {
		j := dim - 1 - i
		spectrum[i] = math.Max(ascending[j], 0)
		order[i] = j
	}
	total := floats.Sum(spectrum)
	t := retainedCount(spectrum, total, opts.VarianceFraction)

	modes := mat.NewDense(dim, max(t, 1), nil)
	for k := 0; k < t; k++ {
		modes.SetCol(k, mat.Col(nil, order[k], &vectors))
	}

	m := &Model{
		mean:     mean,
		modes:    modes,
		values:   append([]float64(nil), spectrum[:t]...),
		spectrum: spectrum,
		total:    total,
		samples:  len(training),
	}
	monitoring.Logf("shapemodel: %d shapes, %d points, kept %d of %d modes (%.2f%% of variance)",
		len(training), dim/2, t, dim, 100*m.RetainedFraction())
	return m, nil
}

// retainedCount returns the smallest t whose leading eigenvalues sum to at
// least fraction*total.
func retainedCount(spectrum []float64, total, fraction float64) int {
	if total <= 0 {
		return 0
	}
	var cum float64
	for i, v := range spectrum {
		cum += v
		if cum >= fraction*total*(1-1e-12) {
			return i + 1
		}
	}
	return len(spectrum)
}

// Points returns the number of landmarks per shape.
func (m *Model) Points() int { return len(m.mean) / 2 }

// Components returns the number of retained modes.
func (m *Model) Components() int { return len(m.values) }

// Samples returns the number of training shapes the model was built from.
func (m *Model) Samples() int { return m.samples }

// Mean returns the average of the aligned training shapes.
func (m *Model) Mean() models.Shape { return models.ShapeFromVector(m.mean) }

// Eigenvalues returns the retained eigenvalues in non-increasing order.
func (m *Model) Eigenvalues() []float64 { return append([]float64(nil), m.values...) }

// Spectrum returns every eigenvalue of the training covariance, including
// the discarded ones, in non-increasing order.
func (m *Model) Spectrum() []float64 { return append([]float64(nil), m.spectrum...) }

// Eigenvector returns retained mode i as a 2N vector.
func (m *Model) Eigenvector(i int) []float64 { return mat.Col(nil, i, m.modes) }

// TotalVariance returns the sum of all eigenvalues.
func (m *Model) TotalVariance() float64 { return m.total }

// RetainedFraction returns the share of total variance explained by the
// retained modes, or 1 for a training set without variation.
func (m *Model) RetainedFraction() float64 {
	if m.total <= 0 {
		return 1
	}
	return floats.Sum(m.values) / m.total
}

// Generate returns mean + sum(params[i] * mode[i]) as a shape in the aligned
// frame.
func (m *Model) Generate(params []float64) (models.Shape, error) {
	if len(params) != len(m.values) {
		return nil, fmt.Errorf("generate with %d parameters, model has %d modes: %w",
			len(params), len(m.values), ErrDimensionMismatch)
	}
	x := append([]float64(nil), m.mean...)
	if len(params) > 0 {
		var dx mat.VecDense
		dx.MulVec(m.modes, mat.NewVecDense(len(params), append([]float64(nil), params...)))
		floats.Add(x, dx.RawVector().Data)
	}
	return models.ShapeFromVector(x), nil
}

// Project returns the mode coefficients of s, a shape already expressed in
// the aligned frame. It inverts Generate up to the variance of the discarded
// modes.
func (m *Model) Project(s models.Shape) ([]float64, error) {
	if s.Len() != m.Points() {
		return nil, fmt.Errorf("project %d points onto %d-point model: %w",
			s.Len(), m.Points(), procrustes.ErrShapeMismatch)
	}
	params := make([]float64, len(m.values))
	if len(params) == 0 {
		return params, nil
	}
	dx := s.Vector()
	floats.Sub(dx, m.mean)

	var b mat.VecDense
	b.MulVec(m.modes.T(), mat.NewVecDense(len(dx), dx))
	copy(params, b.RawVector().Data)
	return params, nil
}

// ProjectAligned projects a shape produced by the procrustes package.
func (m *Model) ProjectAligned(a procrustes.AlignedShape) ([]float64, error) {
	return m.Project(a.Shape())
}

// AllowedDeviation returns sqrt(eigenvalue) for every retained mode.
func (m *Model) AllowedDeviation() []float64 {
	dev := make([]float64, len(m.values))
	for i, v := range m.values {
		dev[i] = math.Sqrt(v)
	}
	return dev
}

// Clamp returns params with every coefficient limited to
// +-multiple*sqrt(eigenvalue).
func (m *Model) Clamp(params []float64, multiple float64) ([]float64, error) {
	if len(params) != len(m.values) {
		return nil, fmt.Errorf("clamp %d parameters, model has %d modes: %w",
			len(params), len(m.values), ErrDimensionMismatch)
	}
	out := make([]float64, len(params))
	for i, dev := range m.AllowedDeviation() {
		limit := multiple * dev
		out[i] = math.Max(-limit, math.Min(limit, params[i]))
	}
	return out, nil
}
