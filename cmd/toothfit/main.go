package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"toothfit/internal/models"
	"toothfit/internal/monitoring"
	"toothfit/pkg/config"
	"toothfit/pkg/filter"
	"toothfit/pkg/fitting"
	"toothfit/pkg/landmarks"
	"toothfit/pkg/pyramid"
	"toothfit/pkg/radiograph"
	"toothfit/pkg/sampler"
	"toothfit/pkg/shapemodel"
	"toothfit/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "toothfit.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	landmarkDir := flag.String("landmarks", "", "Directory containing landmarks<sample>-<part>.txt files")
	part := flag.Int("part", 0, "Tooth part to train on (default: model.part from the configuration)")
	radiographDir := flag.String("radiographs", "", "Directory of training radiographs <sample>.tif; trains per-landmark profiles when set")
	imagePath := flag.String("image", "", "Radiograph to fit")
	clickX := flag.Float64("x", -1, "Initial outline centre, x in pixels of the preprocessed image")
	clickY := flag.Float64("y", -1, "Initial outline centre, y in pixels of the preprocessed image")
	scale := flag.Float64("scale", 0, "Initial outline scale in level-0 pixels (default: 12 pixels of the coarsest level)")
	level := flag.Int("level", -1, "Pyramid level to start at (default: coarsest)")
	output := flag.String("output", "", "Overlay output file (default: output.overlayFile from the configuration)")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: fitting.numCores from the configuration)")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *landmarkDir == "" || *imagePath == "" || *clickX < 0 || *clickY < 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *part > 0 {
		cfg.Model.Part = *part
	}
	if *numCores > 0 {
		cfg.Fitting.NumCores = *numCores
	}
	if *output != "" {
		cfg.Output.OverlayFile = *output
	}
	if !cfg.Output.Verbose {
		monitoring.SetLogger(nil)
	}

	fmt.Println("================================")
	fmt.Println("ACTIVE SHAPE MODEL INCISOR FITTING")
	fmt.Println("================================")

	startTime := time.Now()

	samples, err := landmarks.LoadDir(*landmarkDir, cfg.Model.Part)
	if err != nil {
		log.Fatalf("Failed to load landmarks: %v", err)
	}
	model, err := shapemodel.Build(landmarks.Shapes(samples), cfg.ModelOptions())
	if err != nil {
		log.Fatalf("Failed to build shape model: %v", err)
	}
	fmt.Printf("Shape model: %d training outlines, %d landmarks, %d modes (%.1f%% of variance)\n",
		model.Samples(), model.Points(), model.Components(), 100*model.RetainedFraction())

	opts, err := cfg.EngineOptions()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	profiles := sampler.PeakProfile(cfg.Sampling.ProfileHalfLength)
	if *radiographDir != "" {
		profiles, err = trainProfiles(cfg, samples, *radiographDir, opts.Matcher)
		if err != nil {
			log.Fatalf("Failed to train profiles: %v", err)
		}
		fmt.Printf("Trained boundary profiles on %d radiographs\n", len(samples))
	}

	field, err := preprocess(cfg, *imagePath)
	if err != nil {
		log.Fatalf("Failed to preprocess %s: %v", *imagePath, err)
	}
	fmt.Printf("Edge field: %dx%d pixels\n", field.Width, field.Height)

	engine, err := fitting.NewEngine(model, profiles, opts)
	if err != nil {
		log.Fatalf("Failed to create fitting engine: %v", err)
	}

	startLevel := *level
	if startLevel < 0 {
		startLevel = opts.Levels - 1
	}
	scaleHint := *scale
	if scaleHint <= 0 {
		scaleHint = fitting.DefaultScaleHint(opts.Levels, startLevel)
	}
	if _, err := engine.Setup(field, fitting.PoseFromClick(r2.Vec{X: *clickX, Y: *clickY}, scaleHint)); err != nil {
		log.Fatalf("Failed to set up fit: %v", err)
	}
	if err := engine.SetLevel(startLevel); err != nil {
		log.Fatalf("Failed to select level %d: %v", startLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := &fitting.Driver{
		Engine:  engine,
		Options: cfg.DriverOptions(),
		OnStep: func(res fitting.StepResult) {
			monitoring.Logf("level %d: displacement %.3f, %d boundary touches", res.Level, res.TotalDisplacement, res.BoundaryTouches)
		},
	}
	fmt.Println("Fitting coarse to fine...")
	report, err := driver.Run(ctx)
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nFit finished in %.2f seconds after %d steps: %s\n", processingTime.Seconds(), report.Steps(), report.State)
	if n := report.Steps(); n > 0 {
		fmt.Printf("Final step displacement: %.3f pixels\n", report.Displacements[n-1])
	}
	fmt.Printf("Boundary touches: %d\n", report.BoundaryTouches)

	if err := visualization.SaveOverlay(field, cfg.Output.OverlayFile, report.Shape); err != nil {
		log.Fatalf("Failed to save overlay: %v", err)
	}
	fmt.Printf("Overlay saved to: %s\n", cfg.Output.OverlayFile)

	if cfg.Output.SpectrumFile != "" {
		if err := visualization.SaveSpectrum(model.Spectrum(), model.Components(), cfg.Output.SpectrumFile); err != nil {
			log.Printf("Warning: Failed to save eigenvalue spectrum: %v", err)
		} else {
			fmt.Printf("Eigenvalue spectrum saved to: %s\n", cfg.Output.SpectrumFile)
		}
	}
	if cfg.Output.ConvergenceFile != "" && report.Steps() > 0 {
		if err := visualization.SaveConvergence(report.Displacements, report.Levels, cfg.Output.ConvergenceFile); err != nil {
			log.Printf("Warning: Failed to save convergence plot: %v", err)
		} else {
			fmt.Printf("Convergence plot saved to: %s\n", cfg.Output.ConvergenceFile)
		}
	}
	if cfg.Output.PyramidDir != "" {
		if err := visualization.SavePyramid(engine.Pyramid(), report.Shape, cfg.Output.PyramidDir); err != nil {
			log.Printf("Warning: Failed to save pyramid levels: %v", err)
		} else {
			fmt.Printf("Pyramid levels saved to: %s\n", cfg.Output.PyramidDir)
		}
	}
}

// preprocess loads a radiograph, crops it to the incisor region if
// configured and returns its edge-strength field.
func preprocess(cfg *config.Config, path string) (models.Field, error) {
	field, _, err := loadCropped(cfg, path)
	if err != nil {
		return models.Field{}, err
	}
	return filter.ProcessWith(field, cfg.FilterOptions()), nil
}

// loadCropped returns the, possibly cropped, radiograph and the offset of
// its origin in the original image.
func loadCropped(cfg *config.Config, path string) (models.Field, image.Point, error) {
	field, err := radiograph.Load(path)
	if err != nil {
		return models.Field{}, image.Point{}, err
	}
	if !cfg.Preprocess.Crop {
		return field, image.Point{}, nil
	}
	region := radiograph.CropRegion(field.Width, field.Height)
	cropped, err := radiograph.Crop(field, region)
	if err != nil {
		return models.Field{}, image.Point{}, err
	}
	return cropped, region.Min, nil
}

// trainProfiles learns per-landmark boundary profiles from the radiograph
// of every training sample. Annotations are in original image pixels and
// are shifted into the cropped frame.
func trainProfiles(cfg *config.Config, samples []landmarks.Sample, dir string, matcher sampler.Matcher) (*sampler.ProfileModel, error) {
	training := make([]sampler.TrainingSample, 0, len(samples))
	for _, s := range samples {
		path := filepath.Join(dir, radiograph.FileName(s.Index))
		field, offset, err := loadCropped(cfg, path)
		if err != nil {
			return nil, err
		}
		p, err := pyramid.Build(filter.ProcessWith(field, cfg.FilterOptions()), cfg.Pyramid.Levels, cfg.Pyramid.MinSize)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		shape := s.Shape.Translate(r2.Vec{X: -float64(offset.X), Y: -float64(offset.Y)})
		training = append(training, sampler.TrainingSample{Pyramid: p, Shape: shape})
	}
	return sampler.TrainProfiles(training, cfg.Pyramid.Levels, cfg.Sampling.ProfileHalfLength, matcher)
}
