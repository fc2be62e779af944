package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spachava753/hltcheck/internal/command"
	"github.com/spachava753/hltcheck/internal/environment"
	"github.com/spachava753/hltcheck/internal/models"
)

// Pool runs external commands for a set of files with bounded concurrency.
// Submitted commands are never cancelled; a cancelled context only stops
// further submissions.
type Pool struct {
	env     environment.Environment
	workDir string
	width   int
}

// NewPool creates a pool running at most width commands at once in workDir.
func NewPool(env environment.Environment, workDir string, width int) *Pool {
	return &Pool{
		env:     env,
		workDir: workDir,
		width:   max(width, 1),
	}
}

// RunJobs runs every job and returns one result per job, in job order.
// A failing job does not affect its siblings.
func (p *Pool) RunJobs(ctx context.Context, cmds models.CommandsConfig, jobs []models.Job) []models.JobResult {
	results := make([]models.JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.width)

	for i, job := range jobs {
		if ctx.Err() != nil {
			results[i] = models.JobResult{
				Name:       job.Name,
				ConfigFile: job.ConfigFile,
				LogFile:    job.LogFile,
				ExitCode:   -1,
				Error:      models.NewStageError(models.ErrJobFailed, "not started: %v", ctx.Err()),
			}
			continue
		}
		g.Go(func() error {
			results[i] = p.runJob(context.WithoutCancel(ctx), cmds, job)
			return nil
		})
	}

	g.Wait()
	return results
}

func (p *Pool) runJob(ctx context.Context, cmds models.CommandsConfig, job models.Job) models.JobResult {
	result := models.JobResult{
		Name:       job.Name,
		ConfigFile: job.ConfigFile,
		LogFile:    job.LogFile,
		ExitCode:   -1,
	}

	start := time.Now()
	defer func() {
		result.DurationSec = time.Since(start).Seconds()
	}()

	logFile, err := os.Create(filepath.Join(p.workDir, job.LogFile))
	if err != nil {
		result.Error = models.WrapStageError(models.ErrInternalError, err, "creating log file %s", job.LogFile)
		return result
	}
	defer logFile.Close()

	cmd := command.Run(cmds, job.ConfigFile)
	fmt.Fprintf(logFile, "# %s\n", cmd)

	slog.Debug("job started", "job", job.Name, "config", job.ConfigFile)
	exitCode, err := p.env.Exec(ctx, cmd, logFile, logFile)
	result.ExitCode = exitCode
	if err != nil {
		result.Error = models.WrapStageError(models.ErrJobFailed, err, "running %s", job.ConfigFile)
		slog.Error("job failed", "job", job.Name, "error", err)
		return result
	}

	if exitCode != 0 {
		result.Error = models.NewStageError(models.ErrJobFailed, "%s exited with code %d, see %s", cmds.Runner, exitCode, job.LogFile)
		slog.Error("job failed", "job", job.Name, "exit_code", exitCode, "log", job.LogFile)
		return result
	}

	slog.Info("job finished", "job", job.Name, "duration", time.Since(start).Round(time.Millisecond))
	return result
}

// Compare diffs every variant's result file against baseResult. The returned
// error is the first mismatch observed; passes observed after it are not
// reported, but every submitted comparison still runs to completion.
func (p *Pool) Compare(ctx context.Context, cmds models.CommandsConfig, baseResult string, variants []models.Variant, events int) ([]models.Comparison, error) {
	expected := command.ExpectedDiffSummary(events)
	comparisons := make([]models.Comparison, len(variants))

	var failed atomic.Bool
	var g errgroup.Group
	g.SetLimit(p.width)

	var skipped error
	for i, v := range variants {
		if ctx.Err() != nil {
			comparisons[i] = models.Comparison{
				Path:       v.Path,
				ResultFile: v.ResultFile,
				Message:    fmt.Sprintf("not started: %v", ctx.Err()),
			}
			if skipped == nil {
				skipped = models.WrapStageError(models.ErrComparisonMismatch, ctx.Err(), "comparison of %s not started", v.ResultFile)
			}
			continue
		}
		g.Go(func() error {
			c := p.compare(context.WithoutCancel(ctx), cmds, baseResult, v, expected)
			comparisons[i] = c
			if !c.Passed {
				if failed.CompareAndSwap(false, true) {
					slog.Error("comparison failed", "path", v.Path, "message", c.Message)
				}
				return models.NewStageError(models.ErrComparisonMismatch, "%s", c.Message)
			}
			if !failed.Load() {
				slog.Info("comparison passed", "path", v.Path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return comparisons, err
	}
	return comparisons, skipped
}

func (p *Pool) compare(ctx context.Context, cmds models.CommandsConfig, baseResult string, v models.Variant, expected string) models.Comparison {
	c := models.Comparison{
		Path:       v.Path,
		ResultFile: v.ResultFile,
	}

	if _, err := os.Stat(filepath.Join(p.workDir, v.ResultFile)); err != nil {
		c.Message = fmt.Sprintf("result file %s not found", v.ResultFile)
		return c
	}

	var out bytes.Buffer
	var sink io.Writer = &out
	logName := "diff_" + v.Path + ".log"
	if logFile, err := os.Create(filepath.Join(p.workDir, logName)); err == nil {
		defer logFile.Close()
		sink = io.MultiWriter(&out, logFile)
	} else {
		slog.Warn("could not create diff log", "file", logName, "error", err)
	}

	exitCode, err := p.env.Exec(ctx, command.Diff(cmds, baseResult, v.ResultFile), sink, sink)
	if err != nil {
		c.Message = fmt.Sprintf("running %s on %s: %v", cmds.Differ, v.ResultFile, err)
		return c
	}

	if !strings.Contains(out.String(), expected) {
		c.Message = fmt.Sprintf("%s differs from %s (exit code %d): expected %q, see %s",
			v.ResultFile, baseResult, exitCode, expected, logName)
		return c
	}

	c.Passed = true
	return c
}

// FailedJobs counts the results that did not succeed.
func FailedJobs(results []models.JobResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
