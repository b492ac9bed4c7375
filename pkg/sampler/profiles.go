package sampler

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
	"toothfit/pkg/pyramid"
)

// ProfileModel holds the reference boundary profiles the search matches
// against, per pyramid level and landmark.
type ProfileModel struct {
	halfLength int

	// shared is used for every level and landmark when profiles is nil
	shared []float64

	// profiles[level][landmark] holds normalized mean profiles
	profiles [][][]float64
}

// PeakProfile returns a model in which every landmark expects a single edge
// maximum at the center of a profile of half-length m.
func PeakProfile(m int) *ProfileModel {
	if m < 0 {
		m = 0
	}
	p := make([]float64, 2*m+1)
	p[m] = 1
	return &ProfileModel{halfLength: m, shared: p}
}

// TrainingSample pairs an annotated outline with the pyramid of its image.
type TrainingSample struct {
	Pyramid *pyramid.Pyramid
	Shape   models.Shape
}

// TrainProfiles learns a mean normalized profile of half-length m for every
// landmark at each of the first levels pyramid levels.
func TrainProfiles(samples []TrainingSample, levels, m int, matcher Matcher) (*ProfileModel, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("train profiles: no samples")
	}
	if levels < 1 || m < 0 {
		return nil, fmt.Errorf("train profiles: invalid levels %d or half-length %d", levels, m)
	}
	points := samples[0].Shape.Len()

	pm := &ProfileModel{halfLength: m, profiles: make([][][]float64, levels)}
	for level := range pm.profiles {
		pm.profiles[level] = make([][]float64, points)
		for i := range pm.profiles[level] {
			pm.profiles[level][i] = make([]float64, 2*m+1)
		}
	}

	touches := 0
	for si, sample := range samples {
		if sample.Shape.Len() != points {
			return nil, fmt.Errorf("train profiles: sample %d has %d points, want %d", si, sample.Shape.Len(), points)
		}
		normals, err := Normals(sample.Shape)
		if err != nil {
			return nil, fmt.Errorf("train profiles: sample %d: %w", si, err)
		}
		s := New(sample.Pyramid, matcher)
		for level := 0; level < levels; level++ {
			for i, p := range sample.Shape {
				g, touched, err := s.SampleProfile(p, normals[i], level, m)
				if err != nil {
					return nil, fmt.Errorf("train profiles: sample %d level %d: %w", si, level, err)
				}
				if touched {
					touches++
				}
				floats.Add(pm.profiles[level][i], Normalize(matcher, g))
			}
		}
	}

	for level := range pm.profiles {
		for i := range pm.profiles[level] {
			floats.Scale(1/float64(len(samples)), pm.profiles[level][i])
		}
	}
	monitoring.Logf("sampler: trained %d-sample profiles for %d landmarks on %d levels (%d boundary touches)",
		2*m+1, points, levels, touches)
	return pm, nil
}

// HalfLength returns m, the half-length of every reference profile.
func (pm *ProfileModel) HalfLength() int { return pm.halfLength }

// Landmarks returns the number of landmarks the model was trained for, or 0
// for a shared profile.
func (pm *ProfileModel) Landmarks() int {
	if len(pm.profiles) == 0 {
		return 0
	}
	return len(pm.profiles[0])
}

// Levels returns the number of trained levels, or 0 for a shared profile.
func (pm *ProfileModel) Levels() int { return len(pm.profiles) }

// Reference returns the reference profile for a landmark at a level.
func (pm *ProfileModel) Reference(level, landmark int) ([]float64, error) {
	if pm.profiles == nil {
		return pm.shared, nil
	}
	if level < 0 || level >= len(pm.profiles) {
		return nil, fmt.Errorf("reference profile for level %d: %w", level, pyramid.ErrLevelOutOfRange)
	}
	if landmark < 0 || landmark >= len(pm.profiles[level]) {
		return nil, fmt.Errorf("reference profile for landmark %d of %d", landmark, len(pm.profiles[level]))
	}
	return pm.profiles[level][landmark], nil
}
