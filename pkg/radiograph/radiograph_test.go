package radiograph

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"toothfit/internal/models"
)

func testImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(10*y + x)})
		}
	}
	return img
}

func TestLoadTIFFAndPNG(t *testing.T) {
	dir := t.TempDir()

	tifPath := filepath.Join(dir, FileName(3))
	f, err := os.Create(tifPath)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, testImage(), nil))
	require.NoError(t, f.Close())

	pngPath := filepath.Join(dir, "03.png")
	f, err = os.Create(pngPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, testImage()))
	require.NoError(t, f.Close())

	for _, path := range []string{tifPath, pngPath} {
		field, err := Load(path)
		require.NoError(t, err, path)
		assert.Equal(t, 6, field.Width)
		assert.Equal(t, 4, field.Height)
		assert.Equal(t, 0.0, field.At(0, 0))
		assert.Equal(t, 35.0, field.At(5, 3))
	}

	_, err = Load(filepath.Join(dir, "missing.tif"))
	assert.Error(t, err)
}

func TestFromImageColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(2, 2, 4, 3))
	img.Set(2, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(3, 2, color.RGBA{A: 255})

	f := FromImage(img)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 1, f.Height)
	assert.Equal(t, 255.0, f.At(0, 0))
	assert.Equal(t, 0.0, f.At(1, 0))
}

func TestCropRegion(t *testing.T) {
	assert.Equal(t, image.Rect(1000, 500, 1800, 1400), CropRegion(2800, 1600))
	// Small images are clipped.
	assert.Equal(t, image.Rect(0, 500, 600, 1000), CropRegion(600, 1000))
	assert.True(t, CropRegion(600, 400).Empty())
}

func TestCrop(t *testing.T) {
	f := FromImage(testImage())
	c, err := Crop(f, image.Rect(2, 1, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Width)
	assert.Equal(t, 2, c.Height)
	assert.Equal(t, []float64{12, 13, 14, 22, 23, 24}, c.Data)

	// The crop owns its data.
	c.Set(0, 0, -1)
	assert.Equal(t, 12.0, f.At(2, 1))

	_, err = Crop(f, image.Rect(10, 10, 20, 20))
	assert.Error(t, err)

	c, err = Crop(models.NewField(4, 4), image.Rect(-2, -2, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Width)
}
