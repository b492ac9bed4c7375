package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toothfit/pkg/fitting"
	"toothfit/pkg/sampler"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.98, cfg.Model.VarianceFraction)
	assert.Equal(t, 3, cfg.Pyramid.Levels)
	assert.Equal(t, 6, cfg.Sampling.SearchHalfLength)
	assert.Equal(t, 3, cfg.Sampling.ProfileHalfLength)
	assert.Equal(t, "ssd", cfg.Sampling.Matcher)
	assert.Equal(t, 30, cfg.Fitting.MaxStepsPerLevel)
	assert.True(t, cfg.Preprocess.Crop)
	assert.Equal(t, "fit.png", cfg.Output.OverlayFile)
	assert.Positive(t, cfg.Fitting.NumCores)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("sampling:\n  matcher: ncc\n  searchHalfLength: 4\nfitting:\n  convergenceThreshold: 1.5\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ncc", cfg.Sampling.Matcher)
	assert.Equal(t, 4, cfg.Sampling.SearchHalfLength)
	assert.Equal(t, 1.5, cfg.Fitting.ConvergenceThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Sampling.ProfileHalfLength)
	assert.Equal(t, 0.98, cfg.Model.VarianceFraction)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, sampler.MatchNCC, opts.Matcher)
	assert.Equal(t, 4, opts.SearchHalfLength)
	assert.Equal(t, 1.5, opts.ConvergenceThreshold)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("model: [1, 2"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("sampling:\n  matcher: mahalanobis\n"), 0644))
	_, err = LoadConfig(invalid)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero variance":       func(c *Config) { c.Model.VarianceFraction = 0 },
		"variance above one":  func(c *Config) { c.Model.VarianceFraction = 1.1 },
		"no levels":           func(c *Config) { c.Pyramid.Levels = 0 },
		"no search range":     func(c *Config) { c.Sampling.SearchHalfLength = 0 },
		"no profile":          func(c *Config) { c.Sampling.ProfileHalfLength = -1 },
		"unknown matcher":     func(c *Config) { c.Sampling.Matcher = "mahalanobis" },
		"zero clamp":          func(c *Config) { c.Fitting.ClampMultiplier = 0 },
		"negative threshold":  func(c *Config) { c.Fitting.ConvergenceThreshold = -1 },
		"no steps":            func(c *Config) { c.Fitting.MaxStepsPerLevel = 0 },
		"no procrustes steps": func(c *Config) { c.Model.ProcrustesMaxIterations = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestOptionMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.ProcrustesMaxIterations = 7
	cfg.Fitting.LevelDropThreshold = 4

	mo := cfg.ModelOptions()
	assert.Equal(t, 7, mo.Procrustes.MaxIterations)
	assert.Equal(t, cfg.Model.VarianceFraction, mo.VarianceFraction)

	assert.Equal(t, fitting.DriverOptions{MaxStepsPerLevel: 30, LevelDropThreshold: 4}, cfg.DriverOptions())
	assert.Equal(t, 17, cfg.FilterOptions().BilateralDiameter)
}
