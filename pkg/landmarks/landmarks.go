// Package landmarks reads and writes annotated tooth outlines stored as
// plain text, one coordinate value per line, x and y alternating.
package landmarks

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
)

// ErrOddValueCount is returned for a file whose values cannot be paired into
// points.
var ErrOddValueCount = errors.New("odd number of landmark values")

// Read parses whitespace or newline separated values from r into a shape.
func Read(r io.Reader) (models.Shape, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var values []float64
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("landmark value %d: %w", len(values)+1, err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("%d values: %w", len(values), ErrOddValueCount)
	}

	s := make(models.Shape, len(values)/2)
	for i := range s {
		s[i] = r2.Vec{X: values[2*i], Y: values[2*i+1]}
	}
	return s, nil
}

// ReadFile reads a single landmark file.
func ReadFile(path string) (models.Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read landmarks %s: %w", path, err)
	}
	return s, nil
}

// Write stores s in the format Read accepts.
func Write(w io.Writer, s models.Shape) error {
	bw := bufio.NewWriter(w)
	for _, p := range s {
		for _, v := range []float64{p.X, p.Y} {
			if _, err := bw.WriteString(strconv.FormatFloat(v, 'f', -1, 64) + "\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile stores s at path.
func WriteFile(path string, s models.Shape) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Sample is one annotated outline of a training set.
type Sample struct {
	Index int
	Path  string
	Shape models.Shape
}

// FileName returns the name of the file holding tooth part of sample.
func FileName(sample, part int) string {
	return fmt.Sprintf("landmarks%d-%d.txt", sample, part)
}

// LoadDir reads every landmarks<sample>-<part>.txt file in dir for the given
// part, ordered by sample index. All outlines must have the same number of
// points.
func LoadDir(dir string, part int) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var sample, p int
		if _, err := fmt.Sscanf(entry.Name(), "landmarks%d-%d.txt", &sample, &p); err != nil || p != part {
			continue
		}
		if entry.Name() != FileName(sample, p) {
			continue
		}
		samples = append(samples, Sample{Index: sample, Path: filepath.Join(dir, entry.Name())})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no landmark files for part %d in %s", part, dir)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Index < samples[j].Index })

	for i := range samples {
		s, err := ReadFile(samples[i].Path)
		if err != nil {
			return nil, err
		}
		if i > 0 && s.Len() != samples[0].Shape.Len() {
			return nil, fmt.Errorf("%s has %d points, %s has %d",
				samples[i].Path, s.Len(), samples[0].Path, samples[0].Shape.Len())
		}
		samples[i].Shape = s
	}

	monitoring.Logf("landmarks: loaded %d outlines of %d points for part %d from %s",
		len(samples), samples[0].Shape.Len(), part, dir)
	return samples, nil
}

// Shapes returns the outlines of samples in order.
func Shapes(samples []Sample) []models.Shape {
	shapes := make([]models.Shape, len(samples))
	for i, s := range samples {
		shapes[i] = s.Shape
	}
	return shapes
}
