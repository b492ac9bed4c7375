// Package fitting implements the Active Shape Model search: it moves a
// statistical shape model over an edge-strength field, one step at a time,
// from the coarsest pyramid level towards the finest.
package fitting

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
	"toothfit/pkg/procrustes"
	"toothfit/pkg/pyramid"
	"toothfit/pkg/sampler"
	"toothfit/pkg/shapemodel"
)

// ErrNotInitialized is returned by operations that need a target image when
// Setup has not been called yet.
var ErrNotInitialized = errors.New("fitting engine not initialized")

// State is the phase of a fit.
type State int

const (
	// Uninitialized is the zero state before Setup.
	Uninitialized State = iota
	Initialized
	Fitting
	Converged
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Fitting:
		return "fitting"
	case Converged:
		return "converged"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options holds the engine parameters.
type Options struct {
	// Levels is the number of pyramid levels built by Setup.
	Levels int

	// MinSize is the smallest side length a pyramid level may have.
	MinSize int

	// SearchHalfLength is k: candidate offsets along each normal are
	// searched in [-k, k] level pixels.
	SearchHalfLength int

	// ClampMultiplier bounds every shape parameter to
	// ±ClampMultiplier·sqrt(eigenvalue).
	ClampMultiplier float64

	// ConvergenceThreshold is the total landmark displacement, in level-0
	// pixels, below which a step at level 0 converges.
	ConvergenceThreshold float64

	// Workers is the number of goroutines searching landmarks within one
	// step. Values below 1 select runtime.NumCPU().
	Workers int

	// Matcher selects the profile comparison.
	Matcher sampler.Matcher
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Levels:               3,
		MinSize:              pyramid.DefaultMinSize,
		SearchHalfLength:     6,
		ClampMultiplier:      3,
		ConvergenceThreshold: 0.5,
		Workers:              runtime.NumCPU(),
		Matcher:              sampler.MatchSSD,
	}
}

// FitState is the mutable part of a fit. The model it refers to is shared
// and read-only; the shape it describes is derived on demand.
type FitState struct {
	Pose       models.Pose
	Parameters []float64
	Level      int
	State      State
}

func (fs FitState) clone() FitState {
	fs.Parameters = append([]float64(nil), fs.Parameters...)
	return fs
}

// StepResult describes one fitting iteration.
type StepResult struct {
	// Shape is the fitted outline after the step, in level-0 pixels.
	Shape models.Shape

	// Targets are the suggested landmark positions found by the search.
	Targets models.Shape

	// Offsets holds the chosen offset per landmark in level pixels.
	Offsets []int

	// Touched flags landmarks whose profile was clamped at the image border.
	Touched []bool

	// BoundaryTouches counts the entries of Touched that are set.
	BoundaryTouches int

	// TotalDisplacement is the summed distance from each landmark to its
	// target, in level-0 pixels.
	TotalDisplacement float64

	Level int
	State State
}

// Engine fits one shape model instance to one image. An engine is owned by a
// single caller; Step must not be called concurrently. The model, profile
// model and pyramid it reads may be shared with other engines.
type Engine struct {
	model    *shapemodel.Model
	profiles *sampler.ProfileModel
	opts     Options

	sampler *sampler.Sampler
	state   FitState
}

// NewEngine creates an engine for model using reference profiles from
// profiles.
//
// Parameters:
//   - model: the statistical shape model to fit
//   - profiles: reference boundary profiles, shared or per landmark
//   - opts: search and convergence parameters
//
// Returns:
//   - An uninitialized engine; call Setup before Step
func NewEngine(model *shapemodel.Model, profiles *sampler.ProfileModel, opts Options) (*Engine, error) {
	if model == nil || profiles == nil {
		return nil, fmt.Errorf("new engine: model and profiles are required")
	}
	if n := profiles.Landmarks(); n != 0 && n != model.Points() {
		return nil, fmt.Errorf("new engine: profiles for %d landmarks, model has %d: %w",
			n, model.Points(), procrustes.ErrShapeMismatch)
	}
	if opts.SearchHalfLength < 0 {
		return nil, fmt.Errorf("new engine: negative search half-length %d", opts.SearchHalfLength)
	}
	if opts.ClampMultiplier <= 0 {
		return nil, fmt.Errorf("new engine: clamp multiplier must be positive, got %g", opts.ClampMultiplier)
	}
	if opts.ConvergenceThreshold < 0 {
		return nil, fmt.Errorf("new engine: negative convergence threshold %g", opts.ConvergenceThreshold)
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	return &Engine{model: model, profiles: profiles, opts: opts}, nil
}

// Options returns the engine parameters.
func (e *Engine) Options() Options { return e.opts }

// Model returns the shape model being fitted.
func (e *Engine) Model() *shapemodel.Model { return e.model }

// Setup builds a pyramid for the edge-strength field f and starts a fit at
// pose with zero shape parameters at the coarsest level.
func (e *Engine) Setup(f models.Field, pose models.Pose) (FitState, error) {
	p, err := pyramid.Build(f, e.opts.Levels, e.opts.MinSize)
	if err != nil {
		return FitState{}, fmt.Errorf("setup: %w", err)
	}
	return e.SetupPyramid(p, pose)
}

// SetupPyramid is like Setup but attaches an existing pyramid, which may be
// shared with other engines.
func (e *Engine) SetupPyramid(p *pyramid.Pyramid, pose models.Pose) (FitState, error) {
	if p == nil {
		return FitState{}, fmt.Errorf("setup: nil pyramid")
	}
	if pose.Scale == 0 {
		return FitState{}, fmt.Errorf("setup: pose scale must be non-zero")
	}
	if trained := e.profiles.Levels(); trained != 0 && trained < p.Levels() {
		return FitState{}, fmt.Errorf("setup: profiles trained for %d levels, pyramid has %d: %w",
			trained, p.Levels(), pyramid.ErrLevelOutOfRange)
	}

	e.sampler = sampler.New(p, e.opts.Matcher)
	e.state = FitState{
		Pose:       pose,
		Parameters: make([]float64, e.model.Components()),
		Level:      p.Levels() - 1,
		State:      Initialized,
	}
	monitoring.Logf("fitting: setup at %v scale %.3g, level %d of %d",
		pose.Translation, pose.Scale, e.state.Level, p.Levels())
	return e.state.clone(), nil
}

// Pyramid returns the attached pyramid, or nil before Setup.
func (e *Engine) Pyramid() *pyramid.Pyramid {
	if e.sampler == nil {
		return nil
	}
	return e.sampler.Pyramid()
}

// SetLevel switches the active pyramid level without touching pose or
// parameters.
func (e *Engine) SetLevel(level int) error {
	if e.state.State == Uninitialized {
		return ErrNotInitialized
	}
	if level < 0 || level >= e.sampler.Pyramid().Levels() {
		return fmt.Errorf("set level %d of %d: %w", level, e.sampler.Pyramid().Levels(), pyramid.ErrLevelOutOfRange)
	}
	if level != e.state.Level && e.state.State == Converged {
		e.state.State = Fitting
	}
	e.state.Level = level
	return nil
}

// Level returns the active pyramid level.
func (e *Engine) Level() int { return e.state.Level }

// State returns the current phase.
func (e *Engine) State() State { return e.state.State }

// FitState returns a copy of the current fit state.
func (e *Engine) FitState() FitState { return e.state.clone() }

// CurrentParameters returns a copy of the shape parameters.
func (e *Engine) CurrentParameters() []float64 {
	return append([]float64(nil), e.state.Parameters...)
}

// CurrentShape materializes the current outline in level-0 pixels.
func (e *Engine) CurrentShape() (models.Shape, error) {
	if e.state.State == Uninitialized {
		return nil, ErrNotInitialized
	}
	return e.shapeOf(e.state.Pose, e.state.Parameters)
}

func (e *Engine) shapeOf(pose models.Pose, params []float64) (models.Shape, error) {
	s, err := e.model.Generate(params)
	if err != nil {
		return nil, err
	}
	return pose.Apply(s), nil
}

// Step runs one fitting iteration: search every landmark's normal for its
// best boundary match, fit a similarity transform to the suggested targets,
// then project the residual onto the model and clamp the parameters.
func (e *Engine) Step() (StepResult, error) {
	if e.state.State == Uninitialized {
		return StepResult{}, ErrNotInitialized
	}
	level := e.state.Level

	current, err := e.shapeOf(e.state.Pose, e.state.Parameters)
	if err != nil {
		return StepResult{}, fmt.Errorf("step: %w", err)
	}
	normals, err := sampler.Normals(current)
	if err != nil {
		return StepResult{}, fmt.Errorf("step: %w", err)
	}

	res := StepResult{
		Targets: make(models.Shape, len(current)),
		Offsets: make([]int, len(current)),
		Touched: make([]bool, len(current)),
		Level:   level,
	}
	if err := e.search(current, normals, level, res); err != nil {
		return StepResult{}, fmt.Errorf("step at level %d: %w", level, err)
	}

	distances := make([]float64, len(current))
	for i := range current {
		distances[i] = r2.Norm(r2.Sub(res.Targets[i], current[i]))
		if res.Touched[i] {
			res.BoundaryTouches++
		}
	}
	res.TotalDisplacement = floats.Sum(distances)

	inc, err := solveSimilarity(current, res.Targets)
	if err != nil {
		return StepResult{}, fmt.Errorf("step: %w", err)
	}
	pose := inc.Compose(e.state.Pose)

	params, err := e.model.Project(pose.Invert(res.Targets))
	if err != nil {
		return StepResult{}, fmt.Errorf("step: %w", err)
	}
	params, err = e.model.Clamp(params, e.opts.ClampMultiplier)
	if err != nil {
		return StepResult{}, fmt.Errorf("step: %w", err)
	}

	shape, err := e.shapeOf(pose, params)
	if err != nil {
		return StepResult{}, fmt.Errorf("step: %w", err)
	}

	e.state.Pose = pose
	e.state.Parameters = params
	if res.TotalDisplacement < e.opts.ConvergenceThreshold && level == 0 {
		e.state.State = Converged
	} else {
		e.state.State = Fitting
	}

	res.Shape = shape
	res.State = e.state.State
	return res, nil
}

// search finds the target of every landmark. Workers read current and
// normals and write only their own index range of res.
func (e *Engine) search(current models.Shape, normals []r2.Vec, level int, res StepResult) error {
	n := len(current)
	numCores := min(e.opts.Workers, n)
	perCore := (n + numCores - 1) / numCores
	scale := pyramid.Scale(level)
	errs := make([]error, numCores)

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		wg.Add(1)
		go func(coreID int) {
			defer wg.Done()
			start := coreID * perCore
			end := min(start+perCore, n)
			for i := start; i < end; i++ {
				ref, err := e.profiles.Reference(level, i)
				if err != nil {
					errs[coreID] = err
					return
				}
				d, err := e.sampler.BestDisplacement(current[i], normals[i], level, e.opts.SearchHalfLength, ref)
				if err != nil {
					errs[coreID] = fmt.Errorf("landmark %d: %w", i, err)
					return
				}
				res.Offsets[i] = d.Offset
				res.Touched[i] = d.Touched
				res.Targets[i] = r2.Add(current[i], r2.Scale(float64(d.Offset)*scale, normals[i]))
			}
		}(c)
	}
	wg.Wait()

	return errors.Join(errs...)
}
