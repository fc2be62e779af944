package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/spachava753/hltcheck/internal/models"
	"github.com/spachava753/hltcheck/internal/util"
)

// DefaultWorkDir is the working directory used when none is configured.
const DefaultWorkDir = "Phase2_SinglePath_Tests"

// DefaultRunConfig returns a RunConfig seeded from the given defaults.
func DefaultRunConfig(d models.Defaults) models.RunConfig {
	return models.RunConfig{
		GlobalTag:    d.GlobalTag,
		Geometry:     d.Geometry,
		Era:          d.Era,
		Events:       d.Events,
		Threads:      d.Threads,
		ParallelJobs: d.ParallelJobs,
		WorkDir:      DefaultWorkDir,
		Commands: models.CommandsConfig{
			Generator: "cmsDriver.py",
			Dumper:    "edmConfigDump",
			Runner:    "cmsRun",
			Differ:    "hltDiff",
		},
		Environment: models.EnvironmentConfig{
			Type: models.EnvironmentLocal,
		},
	}
}

// LoadRunConfig loads and parses a run.yaml file on top of the given defaults.
func LoadRunConfig(path string, d models.Defaults) (models.RunConfig, error) {
	cfg := DefaultRunConfig(d)

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing run config: %w", err)
	}

	applyDefaults(&cfg, d)
	return cfg, nil
}

// applyDefaults fills values a run file left empty.
func applyDefaults(cfg *models.RunConfig, d models.Defaults) {
	base := DefaultRunConfig(d)

	if cfg.GlobalTag == "" {
		cfg.GlobalTag = base.GlobalTag
	}
	if cfg.Geometry == "" {
		cfg.Geometry = base.Geometry
	}
	if cfg.Era == "" {
		cfg.Era = base.Era
	}
	if cfg.Events == 0 {
		cfg.Events = base.Events
	}
	if cfg.Threads == 0 {
		cfg.Threads = base.Threads
	}
	if cfg.ParallelJobs == 0 {
		cfg.ParallelJobs = base.ParallelJobs
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = base.WorkDir
	}
	if cfg.Commands.Generator == "" {
		cfg.Commands.Generator = base.Commands.Generator
	}
	if cfg.Commands.Dumper == "" {
		cfg.Commands.Dumper = base.Commands.Dumper
	}
	if cfg.Commands.Runner == "" {
		cfg.Commands.Runner = base.Commands.Runner
	}
	if cfg.Commands.Differ == "" {
		cfg.Commands.Differ = base.Commands.Differ
	}
	if cfg.Environment.Type == "" {
		cfg.Environment.Type = base.Environment.Type
	}
}

// Validate checks a resolved RunConfig for values the pipeline cannot run with.
func Validate(cfg models.RunConfig) error {
	if cfg.GlobalTag == "" || cfg.Geometry == "" || cfg.Era == "" {
		return fmt.Errorf("globaltag, geometry and era are required")
	}
	if cfg.Events <= 0 {
		return fmt.Errorf("events must be positive, got %d", cfg.Events)
	}
	if cfg.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", cfg.Threads)
	}
	if cfg.ParallelJobs <= 0 {
		return fmt.Errorf("parallelJobs must be positive, got %d", cfg.ParallelJobs)
	}
	if cfg.WorkDir == "" {
		return fmt.Errorf("work_dir is required")
	}
	for _, p := range cfg.RestrictPathsTo {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("invalid path pattern %q: %w", p, err)
		}
	}

	switch cfg.Environment.Type {
	case models.EnvironmentLocal:
	case models.EnvironmentDocker:
		if cfg.Environment.Image == "" {
			return fmt.Errorf("environment.image is required for docker environments")
		}
		if _, err := util.ParseMemory(cfg.Environment.Memory); err != nil {
			return fmt.Errorf("environment.memory: %w", err)
		}
	default:
		return fmt.Errorf("unsupported environment type: %s", cfg.Environment.Type)
	}

	return nil
}
