package models

import (
	"gonum.org/v1/gonum/floats"
)

// Field is a scalar image, such as grayscale intensity or edge strength,
// stored as a 1D array in row-major order.
type Field struct {
	// Width and Height are the dimensions in pixels
	Width  int
	Height int

	// Data holds Width*Height values, index y*Width+x
	Data []float64
}

// NewField allocates a zeroed field.
func NewField(width, height int) Field {
	return Field{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
	}
}

// Empty reports whether the field has no pixels.
func (f Field) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Data) < f.Width*f.Height
}

// In reports whether (x, y) is a valid pixel.
func (f Field) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// At returns the value at pixel (x, y). The caller must ensure In(x, y).
func (f Field) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// Set stores v at pixel (x, y). The caller must ensure In(x, y).
func (f Field) Set(x, y int, v float64) {
	f.Data[y*f.Width+x] = v
}

// Max returns the largest value in the field, or 0 for an empty field.
func (f Field) Max() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	return floats.Max(f.Data)
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := Field{Width: f.Width, Height: f.Height, Data: make([]float64, len(f.Data))}
	copy(out.Data, f.Data)
	return out
}
