package visualization

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveSpectrum(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "spectrum.png")
	if err := SaveSpectrum([]float64{4, 2, 0.5, 0.1, 0}, 2, filename); err != nil {
		t.Fatalf("Failed to save spectrum: %v", err)
	}
	info, err := os.Stat(filename)
	if err != nil {
		t.Fatalf("Spectrum plot not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Spectrum plot is empty")
	}

	if err := SaveSpectrum(nil, 0, filename); err == nil {
		t.Error("Expected error for empty spectrum")
	}
}

func TestSaveConvergence(t *testing.T) {
	dir := t.TempDir()
	displacements := []float64{40, 22, 9, 12, 5, 1.5, 0.2}
	levels := []int{2, 2, 1, 1, 0, 0, 0}

	for _, name := range []string{"convergence.png", "convergence.svg"} {
		filename := filepath.Join(dir, name)
		if err := SaveConvergence(displacements, levels, filename); err != nil {
			t.Fatalf("Failed to save %s: %v", name, err)
		}
		if info, err := os.Stat(filename); err != nil || info.Size() == 0 {
			t.Errorf("Convergence plot %s not written: %v", name, err)
		}
	}

	if err := SaveConvergence(displacements, levels[:3], filepath.Join(dir, "bad.png")); err == nil {
		t.Error("Expected error for mismatched levels")
	}
	if err := SaveConvergence(nil, nil, filepath.Join(dir, "empty.png")); err == nil {
		t.Error("Expected error for empty history")
	}
}
