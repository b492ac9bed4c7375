package fitting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

// DriverOptions is the coarse-to-fine policy of a Driver.
type DriverOptions struct {
	// MaxStepsPerLevel caps the steps taken at any one level.
	MaxStepsPerLevel int

	// LevelDropThreshold moves the fit one level finer once a step's total
	// displacement, in level-0 pixels, falls below it.
	LevelDropThreshold float64
}

// DefaultDriverOptions returns the default policy.
func DefaultDriverOptions() DriverOptions {
	return DriverOptions{MaxStepsPerLevel: 30, LevelDropThreshold: 2}
}

// Driver runs a complete fit on an initialized engine.
type Driver struct {
	Engine  *Engine
	Options DriverOptions

	// OnStep, if set, is called after every step with its result.
	OnStep func(StepResult)
}

// Report summarizes a driver run.
type Report struct {
	RunID uuid.UUID

	// Displacements and Levels hold the total displacement and level of
	// every step taken.
	Displacements   []float64
	Levels          []int
	BoundaryTouches int

	State      State
	Shape      models.Shape
	Parameters []float64
}

// Steps returns the number of steps taken.
func (r Report) Steps() int { return len(r.Displacements) }

// Run steps the engine from its current level down to level 0. A level is
// left when a step moves less than LevelDropThreshold or when it has used
// MaxStepsPerLevel steps. Run stops when the engine converges or level 0
// runs out of steps; neither outcome is an error.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	if d.Engine == nil || d.Engine.State() == Uninitialized {
		return Report{}, ErrNotInitialized
	}
	if d.Options.MaxStepsPerLevel < 1 {
		return Report{}, fmt.Errorf("driver: max steps per level must be positive, got %d", d.Options.MaxStepsPerLevel)
	}

	e := d.Engine
	report := Report{RunID: uuid.New()}
	stepsAtLevel := 0

	for e.State() != Converged {
		if err := ctx.Err(); err != nil {
			return d.finish(report), err
		}
		if stepsAtLevel >= d.Options.MaxStepsPerLevel {
			if e.Level() == 0 {
				monitoring.Logf("fitting: run %s stopped at level 0 after %d steps without converging",
					report.RunID, stepsAtLevel)
				break
			}
			if err := d.descend(report.RunID); err != nil {
				return d.finish(report), err
			}
			stepsAtLevel = 0
			continue
		}

		res, err := e.Step()
		if err != nil {
			return d.finish(report), err
		}
		stepsAtLevel++
		report.Displacements = append(report.Displacements, res.TotalDisplacement)
		report.Levels = append(report.Levels, res.Level)
		report.BoundaryTouches += res.BoundaryTouches
		if d.OnStep != nil {
			d.OnStep(res)
		}

		if res.State != Converged && res.Level > 0 && res.TotalDisplacement < d.Options.LevelDropThreshold {
			if err := d.descend(report.RunID); err != nil {
				return d.finish(report), err
			}
			stepsAtLevel = 0
		}
	}

	report = d.finish(report)
	monitoring.Logf("fitting: run %s finished %s after %d steps", report.RunID, report.State, report.Steps())
	return report, nil
}

func (d *Driver) descend(runID uuid.UUID) error {
	level := d.Engine.Level() - 1
	monitoring.Logf("fitting: run %s moving to level %d", runID, level)
	return d.Engine.SetLevel(level)
}

func (d *Driver) finish(r Report) Report {
	r.State = d.Engine.State()
	r.Parameters = d.Engine.CurrentParameters()
	if s, err := d.Engine.CurrentShape(); err == nil {
		r.Shape = s
	}
	return r
}
