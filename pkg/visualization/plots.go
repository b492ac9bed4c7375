package visualization

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SaveSpectrum plots the eigenvalues of a shape model as bars, marking the
// first retained modes, and writes the plot to filename. The format follows
// the extension (png, svg, pdf, ...).
func SaveSpectrum(values []float64, retained int, filename string) error {
	if len(values) == 0 {
		return fmt.Errorf("spectrum plot: no eigenvalues")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Shape model spectrum (%d of %d modes retained)", retained, len(values))
	p.X.Label.Text = "Mode"
	p.Y.Label.Text = "Eigenvalue"

	kept := make(plotter.Values, len(values))
	dropped := make(plotter.Values, len(values))
	for i, v := range values {
		if i < retained {
			kept[i] = v
		} else {
			dropped[i] = v
		}
	}

	w := vg.Points(8)
	keptBars, err := plotter.NewBarChart(kept, w)
	if err != nil {
		return err
	}
	keptBars.Color = plotutil.Color(0)
	keptBars.LineStyle.Width = 0
	droppedBars, err := plotter.NewBarChart(dropped, w)
	if err != nil {
		return err
	}
	droppedBars.Color = plotutil.Color(1)
	droppedBars.LineStyle.Width = 0

	p.Add(keptBars, droppedBars)
	p.Legend.Add("retained", keptBars)
	p.Legend.Add("discarded", droppedBars)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("save spectrum plot: %w", err)
	}
	return nil
}

// SaveConvergence plots the total landmark displacement of every fitting
// step, one line per pyramid level, and writes the plot to filename.
// levels[i] is the level step i ran at.
func SaveConvergence(displacements []float64, levels []int, filename string) error {
	if len(displacements) == 0 {
		return fmt.Errorf("convergence plot: no steps")
	}
	if len(levels) != len(displacements) {
		return fmt.Errorf("convergence plot: %d levels for %d steps", len(levels), len(displacements))
	}

	p := plot.New()
	p.Title.Text = "Fit convergence"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Total displacement (px)"

	// Steps at one level are contiguous; each run becomes a line.
	start := 0
	for i := 1; i <= len(displacements); i++ {
		if i < len(displacements) && levels[i] == levels[start] {
			continue
		}
		pts := make(plotter.XYs, 0, i-start)
		for j := start; j < i; j++ {
			pts = append(pts, plotter.XY{X: float64(j + 1), Y: displacements[j]})
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(levels[start])
		line.Width = vg.Points(1)
		points.GlyphStyle.Color = line.Color
		p.Add(line, points)
		p.Legend.Add(fmt.Sprintf("level %d", levels[start]), line)
		start = i
	}
	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("save convergence plot: %w", err)
	}
	return nil
}
