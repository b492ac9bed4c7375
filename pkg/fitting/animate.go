package fitting

import (
	"context"

	"github.com/google/uuid"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

// Frame is one published step of an animated fit. Every field is owned by
// the receiver.
type Frame struct {
	RunID      uuid.UUID
	Step       int
	Shape      models.Shape
	Parameters []float64
	Result     StepResult
}

// Animate steps e repeatedly and publishes every result on frames until the
// fit converges, a step fails, or ctx is cancelled. Cancellation is checked
// between steps, never during one. frames is closed when Animate returns.
//
// Animate owns e for its whole run; the caller must not use the engine until
// Animate has returned.
func Animate(ctx context.Context, e *Engine, frames chan<- Frame) error {
	defer close(frames)

	runID := uuid.New()
	monitoring.Logf("fitting: animate run %s started at level %d", runID, e.Level())

	for step := 1; ; step++ {
		select {
		case <-ctx.Done():
			monitoring.Logf("fitting: animate run %s cancelled after %d steps", runID, step-1)
			return ctx.Err()
		default:
		}

		res, err := e.Step()
		if err != nil {
			return err
		}

		frame := Frame{
			RunID:      runID,
			Step:       step,
			Shape:      res.Shape.Clone(),
			Parameters: e.CurrentParameters(),
			Result:     res,
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
			monitoring.Logf("fitting: animate run %s cancelled after %d steps", runID, step)
			return ctx.Err()
		}

		if res.State == Converged {
			monitoring.Logf("fitting: animate run %s converged after %d steps", runID, step)
			return nil
		}
	}
}
