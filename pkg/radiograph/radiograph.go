// Package radiograph loads dental radiographs into grayscale fields and
// selects the incisor region of interest.
package radiograph

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

// Incisor window relative to the image: 400 pixels either side of the
// vertical centre line, rows 500 to 1400.
const (
	cropHalfWidth = 400
	cropTop       = 500
	cropBottom    = 1400
)

// FileName returns the conventional name of radiograph sample.
func FileName(sample int) string {
	return fmt.Sprintf("%02d.tif", sample)
}

// Load decodes a TIFF, PNG or JPEG file into a grayscale field with values
// in [0, 255].
func Load(path string) (models.Field, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.Field{}, fmt.Errorf("failed to open radiograph: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return models.Field{}, fmt.Errorf("failed to decode radiograph %s: %w", path, err)
	}
	f := FromImage(img)
	monitoring.Logf("radiograph: loaded %s (%s, %dx%d)", path, format, f.Width, f.Height)
	return f, nil
}

// FromImage converts img to luminance.
func FromImage(img image.Image) models.Field {
	b := img.Bounds()
	f := models.NewField(b.Dx(), b.Dy())
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				f.Set(x, y, float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return f
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			f.Set(x, y, float64(c.Y))
		}
	}
	return f
}

// CropRegion returns the incisor window of a width x height radiograph,
// clipped to the image.
func CropRegion(width, height int) image.Rectangle {
	cx := width / 2
	r := image.Rect(cx-cropHalfWidth, cropTop, cx+cropHalfWidth, cropBottom)
	return r.Intersect(image.Rect(0, 0, width, height))
}

// Crop copies the part of f inside r. Adding r.Min to a point of the
// cropped field gives its position in f.
func Crop(f models.Field, r image.Rectangle) (models.Field, error) {
	r = r.Intersect(image.Rect(0, 0, f.Width, f.Height))
	if r.Empty() {
		return models.Field{}, fmt.Errorf("crop region does not overlap the %dx%d image", f.Width, f.Height)
	}
	out := models.NewField(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		copy(out.Data[y*out.Width:(y+1)*out.Width], f.Data[(r.Min.Y+y)*f.Width+r.Min.X:(r.Min.Y+y)*f.Width+r.Max.X])
	}
	return out, nil
}
