// Package visualization renders fitted outlines over edge-strength fields
// and plots model and convergence diagnostics. Nothing in the fitting
// packages depends on it.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"

	"toothfit/internal/models"
	"toothfit/pkg/pyramid"
)

var (
	// OutlineColor is used for the edges between landmarks.
	OutlineColor = color.RGBA{R: 230, G: 40, B: 40, A: 255}

	// LandmarkColor is used for the landmark markers.
	LandmarkColor = color.RGBA{R: 40, G: 220, B: 60, A: 255}
)

const pointsPerInch = 72

// Viewer draws outlines over a field.
type Viewer struct {
	field models.Field

	// LineWidth is the outline width in pixels
	LineWidth float64

	// MarkerRadius is the landmark marker radius in pixels; 0 hides markers
	MarkerRadius float64
}

// NewViewer creates a viewer for f.
func NewViewer(f models.Field) *Viewer {
	return &Viewer{field: f, LineWidth: 1, MarkerRadius: 2}
}

// Gray returns the field scaled so its maximum maps to white. Negative values
// are shown as black.
func (v *Viewer) Gray() *image.Gray {
	f := v.field
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	max := f.Max()
	if max <= 0 {
		return img
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			value := uint8(math.Max(0, math.Min(255, f.At(x, y)/max*255)))
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	return img
}

// Render draws the closed outlines over the normalized field. Landmark
// coordinates are pixel indices of the field.
func (v *Viewer) Render(shapes ...models.Shape) (*image.RGBA, error) {
	if v.field.Empty() {
		return nil, fmt.Errorf("render: empty field")
	}
	// The canvas has its origin at the bottom left, one point per pixel.
	width, height := float64(v.field.Width), float64(v.field.Height)
	c := vgimg.NewWith(vgimg.UseWH(vg.Length(width), vg.Length(height)), vgimg.UseDPI(pointsPerInch))
	c.DrawImage(vg.Rectangle{Max: vg.Point{X: vg.Length(width), Y: vg.Length(height)}}, v.Gray())
	toCanvas := func(p models.Shape, i int) vg.Point {
		return vg.Point{X: vg.Length(p[i].X + 0.5), Y: vg.Length(height - p[i].Y - 0.5)}
	}

	for _, s := range shapes {
		if len(s) == 0 {
			continue
		}
		var outline vg.Path
		outline.Move(toCanvas(s, 0))
		for i := 1; i < len(s); i++ {
			outline.Line(toCanvas(s, i))
		}
		outline.Close()
		c.SetLineWidth(vg.Length(v.LineWidth))
		c.SetColor(OutlineColor)
		c.Stroke(outline)

		if v.MarkerRadius <= 0 {
			continue
		}
		c.SetColor(LandmarkColor)
		for i := range s {
			pt := toCanvas(s, i)
			var marker vg.Path
			marker.Move(vg.Point{X: pt.X + vg.Length(v.MarkerRadius), Y: pt.Y})
			marker.Arc(pt, vg.Length(v.MarkerRadius), 0, 2*math.Pi)
			marker.Close()
			c.Fill(marker)
		}
	}

	if img, ok := c.Image().(*image.RGBA); ok {
		return img, nil
	}
	img := image.NewRGBA(c.Image().Bounds())
	draw.Draw(img, img.Bounds(), c.Image(), image.Point{}, draw.Src)
	return img, nil
}

// SaveImage writes img as JPEG or PNG depending on the file extension.
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// RenderOverlay draws shapes over f with the default viewer settings.
func RenderOverlay(f models.Field, shapes ...models.Shape) (*image.RGBA, error) {
	return NewViewer(f).Render(shapes...)
}

// SaveOverlay renders shapes over f and writes the result to filename.
func SaveOverlay(f models.Field, filename string, shapes ...models.Shape) error {
	img, err := RenderOverlay(f, shapes...)
	if err != nil {
		return err
	}
	return SaveImage(img, filename)
}

// SavePyramid writes every level of p to outputDir as level_<n>.png, with
// shape drawn at the matching scale when it is non-nil.
func SavePyramid(p *pyramid.Pyramid, shape models.Shape, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for level := 0; level < p.Levels(); level++ {
		f, err := p.At(level)
		if err != nil {
			return err
		}
		var shapes []models.Shape
		if shape != nil {
			shapes = append(shapes, shape.Scale(1/pyramid.Scale(level)))
		}
		img, err := RenderOverlay(f, shapes...)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("level_%d.png", level))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}

	return nil
}
