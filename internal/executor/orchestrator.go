package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spachava753/hltcheck/internal/command"
	"github.com/spachava753/hltcheck/internal/environment"
	"github.com/spachava753/hltcheck/internal/environment/docker"
	"github.com/spachava753/hltcheck/internal/environment/local"
	"github.com/spachava753/hltcheck/internal/models"
	"github.com/spachava753/hltcheck/internal/paths"
	"github.com/spachava753/hltcheck/internal/report"
)

// Stage names recorded in the run summary.
const (
	StageGenerate = "generate"
	StageDump     = "dump"
	StageDerive   = "derive"
	StageBaseline = "baseline"
	StageRun      = "run"
	StageCompare  = "compare"
)

// Orchestrator drives a complete single-path validation run.
type Orchestrator struct {
	cfg      models.RunConfig
	provider environment.Provider
}

// NewProvider returns the environment provider selected by cfg.
func NewProvider(cfg models.EnvironmentConfig) (environment.Provider, error) {
	switch cfg.Type {
	case models.EnvironmentLocal, "":
		return local.NewProvider(), nil
	case models.EnvironmentDocker:
		return docker.NewProvider(cfg.Pull), nil
	default:
		return nil, fmt.Errorf("unsupported environment type: %s", cfg.Type)
	}
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg models.RunConfig, provider environment.Provider) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		provider: provider,
	}
}

// Run executes every stage of the validation. The returned summary is
// non-nil whenever the working directory could be prepared, also on failure.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	cfg := o.cfg
	summary := &models.RunSummary{
		StartedAt: time.Now(),
	}

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work dir: %w", err)
	}
	cfg.WorkDir = workDir

	if cfg.CachedInput != "" {
		input, err := resolveInput(cfg.CachedInput, workDir)
		if err != nil {
			return nil, err
		}
		cfg.CachedInput = input
	}
	summary.Config = cfg

	// The working directory is recreated on every run
	if err := os.RemoveAll(workDir); err != nil {
		return nil, fmt.Errorf("removing work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	slog.Info("working directory prepared", "path", workDir)

	err = o.run(ctx, cfg, summary)

	summary.EndedAt = time.Now()
	summary.TotalDurationSec = summary.EndedAt.Sub(summary.StartedAt).Seconds()
	if err != nil {
		var se *models.StageError
		if errors.As(err, &se) {
			summary.Error = se
		} else {
			summary.Error = models.WrapStageError(models.ErrInternalError, err, "run failed")
		}
	}

	if _, statErr := os.Stat(workDir); statErr == nil {
		if werr := report.WriteJSON(filepath.Join(workDir, report.SummaryFile), summary); werr != nil {
			slog.Warn("could not write summary", "error", werr)
		}
	}

	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, cfg models.RunConfig, summary *models.RunSummary) error {
	env, err := o.provider.CreateEnvironment(ctx, environment.CreateEnvironmentOptions{
		Name:    cfg.Environment.Name,
		WorkDir: cfg.WorkDir,
		Setup:   cfg.Environment.Setup,
		Image:   cfg.Environment.Image,
		CPUs:    cfg.Environment.CPUs,
		Memory:  cfg.Environment.Memory,
		Mounts:  cfg.Environment.Mounts,
		Env:     cfg.Environment.Env,
	})
	if err != nil {
		return fmt.Errorf("creating %s environment: %w", o.provider.Name(), err)
	}
	defer func() {
		if err := env.Destroy(context.Background()); err != nil {
			slog.Warn("destroying environment", "env", env.ID(), "error", err)
		}
	}()

	// Base configuration
	err = o.stage(ctx, summary, StageGenerate, func() error {
		code, err := o.execLogged(ctx, env, cfg.WorkDir, "generate.log", command.Generator(cfg))
		if err != nil || code != 0 {
			return stageFailure(models.ErrGeneratorFailed, err, code, "generating %s, see generate.log", command.BaseConfig)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Dump
	var dump string
	err = o.stage(ctx, summary, StageDump, func() error {
		text, err := o.dump(ctx, env, cfg)
		dump = text
		return err
	})
	if err != nil {
		return err
	}

	// Discovery and derivation
	var variants []models.Variant
	err = o.stage(ctx, summary, StageDerive, func() error {
		all, err := paths.Discover(dump)
		if err != nil {
			return err
		}
		summary.DiscoveredPaths = len(all)
		slog.Info("trigger paths discovered", "count", len(all))

		selected, unmatched, err := paths.Restrict(all, cfg.RestrictPathsTo)
		for _, p := range unmatched {
			slog.Warn("no trigger path matches pattern", "pattern", p)
		}
		summary.UnmatchedFilters = unmatched
		if err != nil {
			return err
		}
		summary.SelectedPaths = selected

		variants, err = paths.WriteVariants(cfg.WorkDir, dump, selected, all)
		if err != nil {
			return err
		}
		for _, v := range variants {
			if !v.Isolated {
				slog.Warn("path not found in schedule, configuration runs no single path", "path", v.Path, "config", v.ConfigFile)
			}
		}
		summary.Variants = variants
		slog.Info("single-path configurations written", "count", len(variants))
		return nil
	})
	if err != nil {
		return err
	}

	// Baseline events
	if cfg.CachedInput != "" {
		slog.Info("using cached input, skipping baseline event generation", "input", cfg.CachedInput)
		o.skip(summary, StageBaseline)
	} else {
		err = o.stage(ctx, summary, StageBaseline, func() error {
			code, err := o.execLogged(ctx, env, cfg.WorkDir, command.BaselineGenName+".log", command.Baseline(cfg, cfg.DryRun))
			if err != nil || code != 0 {
				return stageFailure(models.ErrBaselineGenFailed, err, code, "generating baseline events, see %s.log", command.BaselineGenName)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if cfg.DryRun {
		slog.Info("dry run, not running configurations")
		o.skip(summary, StageRun)
		o.skip(summary, StageCompare)
		return nil
	}

	pool := NewPool(env, cfg.WorkDir, cfg.ParallelJobs)

	// Execution
	err = o.stage(ctx, summary, StageRun, func() error {
		if err := requireDir(cfg.WorkDir); err != nil {
			return err
		}

		jobs := []models.Job{{Name: "base", ConfigFile: command.BaseDump, LogFile: "base.log"}}
		for _, v := range variants {
			jobs = append(jobs, models.Job{Name: v.Path, ConfigFile: v.ConfigFile, LogFile: v.Path + ".log"})
		}

		summary.Jobs = pool.RunJobs(ctx, cfg.Commands, jobs)
		summary.FailedJobs = FailedJobs(summary.Jobs)
		if summary.FailedJobs > 0 {
			return models.NewStageError(models.ErrJobFailed, "%d of %d jobs failed", summary.FailedJobs, len(jobs))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Comparison
	return o.stage(ctx, summary, StageCompare, func() error {
		if err := requireDir(cfg.WorkDir); err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(cfg.WorkDir, command.BaseResult)); err != nil {
			return models.WrapStageError(models.ErrMissingBaseline, err, "baseline result %s not found", command.BaseResult)
		}

		comparisons, err := pool.Compare(ctx, cfg.Commands, command.BaseResult, variants, cfg.Events)
		summary.Comparisons = comparisons
		return err
	})
}

// stage runs fn as the named stage and records its duration.
func (o *Orchestrator) stage(ctx context.Context, summary *models.RunSummary, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s not started: %w", name, err)
	}

	slog.Info("stage started", "stage", name)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	summary.Stages = append(summary.Stages, models.StageTiming{
		Name:        name,
		DurationSec: elapsed.Seconds(),
	})

	if err != nil {
		slog.Error("stage failed", "stage", name, "duration", elapsed.Round(time.Millisecond), "error", err)
		return err
	}
	slog.Info("stage finished", "stage", name, "duration", elapsed.Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) skip(summary *models.RunSummary, name string) {
	summary.Stages = append(summary.Stages, models.StageTiming{Name: name, Skipped: true})
}

// execLogged runs cmd in env with its output written to logName in dir.
func (o *Orchestrator) execLogged(ctx context.Context, env environment.Environment, dir, logName, cmd string) (int, error) {
	logFile, err := os.Create(filepath.Join(dir, logName))
	if err != nil {
		return -1, fmt.Errorf("creating %s: %w", logName, err)
	}
	defer logFile.Close()

	fmt.Fprintf(logFile, "# %s\n", cmd)
	slog.Debug("running", "cmd", cmd)
	return env.Exec(context.WithoutCancel(ctx), cmd, logFile, logFile)
}

// dump renders the base configuration and returns the dumped text.
func (o *Orchestrator) dump(ctx context.Context, env environment.Environment, cfg models.RunConfig) (string, error) {
	dumpPath := filepath.Join(cfg.WorkDir, command.BaseDump)
	out, err := os.Create(dumpPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", command.BaseDump, err)
	}

	logFile, err := os.Create(filepath.Join(cfg.WorkDir, "dump.log"))
	if err != nil {
		out.Close()
		return "", fmt.Errorf("creating dump.log: %w", err)
	}
	defer logFile.Close()

	code, err := env.Exec(context.WithoutCancel(ctx), command.Dump(cfg.Commands, command.BaseConfig), out, logFile)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil || code != 0 {
		return "", stageFailure(models.ErrDumpFailed, err, code, "dumping %s, see dump.log", command.BaseConfig)
	}

	data, err := os.ReadFile(dumpPath)
	if err != nil {
		return "", models.WrapStageError(models.ErrDumpFailed, err, "reading %s", command.BaseDump)
	}
	return string(data), nil
}

// stageFailure converts an Exec outcome into a StageError.
func stageFailure(typ models.ErrorType, err error, code int, format string, args ...any) error {
	if err != nil {
		return models.WrapStageError(typ, err, format, args...)
	}
	return models.NewStageError(typ, "%s (exit code %d)", fmt.Sprintf(format, args...), code)
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return models.WrapStageError(models.ErrMissingDirectory, err, "working directory %s missing", dir)
	}
	if !info.IsDir() {
		return models.NewStageError(models.ErrMissingDirectory, "%s is not a directory", dir)
	}
	return nil
}

// resolveInput makes a local cached input absolute and checks that it exists
// outside workDir, which is removed before the run. Logical file names and
// URLs are passed through.
func resolveInput(input, workDir string) (string, error) {
	if strings.HasPrefix(input, "/store/") || strings.Contains(input, ":") {
		return input, nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("resolving cached input: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", models.WrapStageError(models.ErrMissingInput, err, "cached input %s not found", input)
	}
	if rel, err := filepath.Rel(workDir, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", models.NewStageError(models.ErrMissingInput,
			"cached input %s is inside the working directory %s, which is recreated on every run; move it elsewhere first", input, workDir)
	}
	return abs, nil
}
