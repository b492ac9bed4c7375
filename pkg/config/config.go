// Package config provides configuration loading and management for toothfit.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"toothfit/pkg/filter"
	"toothfit/pkg/fitting"
	"toothfit/pkg/procrustes"
	"toothfit/pkg/sampler"
	"toothfit/pkg/shapemodel"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Shape model construction
	Model struct {
		// VarianceFraction is the share of total variance the retained modes explain
		VarianceFraction float64 `yaml:"varianceFraction"`

		// ProcrustesMaxIterations caps the mean-shape iteration
		ProcrustesMaxIterations int `yaml:"procrustesMaxIterations"`

		// ProcrustesTolerance is the sum of squared mean change that ends the iteration
		ProcrustesTolerance float64 `yaml:"procrustesTolerance"`

		// Part selects the landmarks<sample>-<part>.txt files used for training
		Part int `yaml:"part"`
	} `yaml:"model"`

	Pyramid struct {
		Levels int `yaml:"levels"`

		// MinSize is the smallest side length in pixels a level may have
		MinSize int `yaml:"minSize"`
	} `yaml:"pyramid"`

	Sampling struct {
		// SearchHalfLength is k: candidate offsets lie in [-k, k]
		SearchHalfLength int `yaml:"searchHalfLength"`

		// ProfileHalfLength is m: profiles are 2m+1 samples long
		ProfileHalfLength int `yaml:"profileHalfLength"`

		// Matcher is ssd or ncc
		Matcher string `yaml:"matcher"`
	} `yaml:"sampling"`

	Fitting struct {
		ClampMultiplier float64 `yaml:"clampMultiplier"`

		// ConvergenceThreshold is the total landmark displacement in level-0 pixels
		ConvergenceThreshold float64 `yaml:"convergenceThreshold"`

		// NumCores specifies how many goroutines search landmarks within a step
		NumCores int `yaml:"numCores"`

		MaxStepsPerLevel   int     `yaml:"maxStepsPerLevel"`
		LevelDropThreshold float64 `yaml:"levelDropThreshold"`
	} `yaml:"fitting"`

	Preprocess struct {
		// Crop restricts the radiograph to the incisor region before filtering
		Crop bool `yaml:"crop"`

		MedianSize        int     `yaml:"medianSize"`
		BilateralDiameter int     `yaml:"bilateralDiameter"`
		SigmaColor        float64 `yaml:"sigmaColor"`
		SigmaSpace        float64 `yaml:"sigmaSpace"`
	} `yaml:"preprocess"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		OverlayFile     string `yaml:"overlayFile"`
		SpectrumFile    string `yaml:"spectrumFile"`
		ConvergenceFile string `yaml:"convergenceFile"`

		// PyramidDir receives one overlay per pyramid level when set
		PyramidDir string `yaml:"pyramidDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	po := procrustes.DefaultOptions()
	cfg.Model.VarianceFraction = 0.98
	cfg.Model.ProcrustesMaxIterations = po.MaxIterations
	cfg.Model.ProcrustesTolerance = po.Tolerance
	cfg.Model.Part = 1

	fo := fitting.DefaultOptions()
	cfg.Pyramid.Levels = fo.Levels
	cfg.Pyramid.MinSize = fo.MinSize

	cfg.Sampling.SearchHalfLength = fo.SearchHalfLength
	cfg.Sampling.ProfileHalfLength = 3
	cfg.Sampling.Matcher = fo.Matcher.String()

	do := fitting.DefaultDriverOptions()
	cfg.Fitting.ClampMultiplier = fo.ClampMultiplier
	cfg.Fitting.ConvergenceThreshold = fo.ConvergenceThreshold
	cfg.Fitting.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Fitting.MaxStepsPerLevel = do.MaxStepsPerLevel
	cfg.Fitting.LevelDropThreshold = do.LevelDropThreshold

	fl := filter.DefaultOptions()
	cfg.Preprocess.Crop = true
	cfg.Preprocess.MedianSize = fl.MedianSize
	cfg.Preprocess.BilateralDiameter = fl.BilateralDiameter
	cfg.Preprocess.SigmaColor = fl.SigmaColor
	cfg.Preprocess.SigmaSpace = fl.SigmaSpace

	cfg.Output.Verbose = true
	cfg.Output.OverlayFile = "fit.png"

	return cfg
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Model.VarianceFraction <= 0 || c.Model.VarianceFraction > 1:
		return fmt.Errorf("model.varianceFraction must be in (0, 1], got %g", c.Model.VarianceFraction)
	case c.Model.ProcrustesMaxIterations < 1:
		return fmt.Errorf("model.procrustesMaxIterations must be positive, got %d", c.Model.ProcrustesMaxIterations)
	case c.Model.ProcrustesTolerance < 0:
		return fmt.Errorf("model.procrustesTolerance must not be negative, got %g", c.Model.ProcrustesTolerance)
	case c.Pyramid.Levels < 1:
		return fmt.Errorf("pyramid.levels must be positive, got %d", c.Pyramid.Levels)
	case c.Pyramid.MinSize < 1:
		return fmt.Errorf("pyramid.minSize must be positive, got %d", c.Pyramid.MinSize)
	case c.Sampling.SearchHalfLength < 1:
		return fmt.Errorf("sampling.searchHalfLength must be positive, got %d", c.Sampling.SearchHalfLength)
	case c.Sampling.ProfileHalfLength < 1:
		return fmt.Errorf("sampling.profileHalfLength must be positive, got %d", c.Sampling.ProfileHalfLength)
	case c.Fitting.ClampMultiplier <= 0:
		return fmt.Errorf("fitting.clampMultiplier must be positive, got %g", c.Fitting.ClampMultiplier)
	case c.Fitting.ConvergenceThreshold < 0:
		return fmt.Errorf("fitting.convergenceThreshold must not be negative, got %g", c.Fitting.ConvergenceThreshold)
	case c.Fitting.MaxStepsPerLevel < 1:
		return fmt.Errorf("fitting.maxStepsPerLevel must be positive, got %d", c.Fitting.MaxStepsPerLevel)
	}
	if _, err := sampler.ParseMatcher(c.Sampling.Matcher); err != nil {
		return fmt.Errorf("sampling.matcher: %w", err)
	}
	return nil
}

// ModelOptions returns the shape model construction options.
func (c *Config) ModelOptions() shapemodel.Options {
	return shapemodel.Options{
		VarianceFraction: c.Model.VarianceFraction,
		Procrustes: procrustes.Options{
			MaxIterations: c.Model.ProcrustesMaxIterations,
			Tolerance:     c.Model.ProcrustesTolerance,
		},
	}
}

// EngineOptions returns the fitting engine options.
func (c *Config) EngineOptions() (fitting.Options, error) {
	matcher, err := sampler.ParseMatcher(c.Sampling.Matcher)
	if err != nil {
		return fitting.Options{}, err
	}
	return fitting.Options{
		Levels:               c.Pyramid.Levels,
		MinSize:              c.Pyramid.MinSize,
		SearchHalfLength:     c.Sampling.SearchHalfLength,
		ClampMultiplier:      c.Fitting.ClampMultiplier,
		ConvergenceThreshold: c.Fitting.ConvergenceThreshold,
		Workers:              c.Fitting.NumCores,
		Matcher:              matcher,
	}, nil
}

// DriverOptions returns the coarse-to-fine driver policy.
func (c *Config) DriverOptions() fitting.DriverOptions {
	return fitting.DriverOptions{
		MaxStepsPerLevel:   c.Fitting.MaxStepsPerLevel,
		LevelDropThreshold: c.Fitting.LevelDropThreshold,
	}
}

// FilterOptions returns the preprocessing filter parameters.
func (c *Config) FilterOptions() filter.Options {
	return filter.Options{
		MedianSize:        c.Preprocess.MedianSize,
		BilateralDiameter: c.Preprocess.BilateralDiameter,
		SigmaColor:        c.Preprocess.SigmaColor,
		SigmaSpace:        c.Preprocess.SigmaSpace,
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
