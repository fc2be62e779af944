package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spachava753/hltcheck/internal/command"
	"github.com/spachava753/hltcheck/internal/models"
	"github.com/spachava753/hltcheck/internal/paths"
)

var testCommands = models.CommandsConfig{
	Generator: "cmsDriver.py",
	Dumper:    "edmConfigDump",
	Runner:    "cmsRun",
	Differ:    "hltDiff",
}

// writeConfigs writes n configurations named after paths, each producing its result file.
func writeConfigs(t *testing.T, dir string, n int) ([]models.Job, []models.Variant) {
	t.Helper()
	var jobs []models.Job
	var variants []models.Variant
	for i := range n {
		name := fmt.Sprintf("HLT_Path%d", i)
		v := models.Variant{
			Path:       name,
			ConfigFile: paths.ConfigFileName(name),
			ResultFile: paths.ResultFileName(name),
			Isolated:   true,
		}
		content := fmt.Sprintf("fileName = cms.untracked.string('file:%s')\n", v.ResultFile)
		if err := os.WriteFile(filepath.Join(dir, v.ConfigFile), []byte(content), 0644); err != nil {
			t.Fatalf("writing config: %v", err)
		}
		jobs = append(jobs, models.Job{Name: name, ConfigFile: v.ConfigFile, LogFile: name + ".log"})
		variants = append(variants, v)
	}
	return jobs, variants
}

func TestRunJobsBoundedConcurrency(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeFramework(t, dir, 10)
	fake.delay = 20 * time.Millisecond
	jobs, _ := writeConfigs(t, dir, 6)

	results := NewPool(fake, dir, 2).RunJobs(context.Background(), testCommands, jobs)

	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	if got := fake.maxRunning.Load(); got > 2 {
		t.Errorf("expected at most 2 concurrent jobs, observed %d", got)
	}
	for i, r := range results {
		if r.Failed() {
			t.Errorf("job %s failed: %+v", r.Name, r.Error)
		}
		if r.Name != jobs[i].Name {
			t.Errorf("result %d: expected %s, got %s", i, jobs[i].Name, r.Name)
		}
		log, err := os.ReadFile(filepath.Join(dir, r.LogFile))
		if err != nil {
			t.Fatalf("reading log: %v", err)
		}
		if !strings.Contains(string(log), "running "+jobs[i].ConfigFile) {
			t.Errorf("log %s missing job output: %q", r.LogFile, log)
		}
	}
}

func TestRunJobsCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeFramework(t, dir, 10)
	jobs, _ := writeConfigs(t, dir, 4)
	fake.exitCodes[jobs[1].ConfigFile] = 65

	results := NewPool(fake, dir, 1).RunJobs(context.Background(), testCommands, jobs)

	// A failure does not stop the remaining jobs.
	if got := len(fake.calls("cmsRun")); got != len(jobs) {
		t.Errorf("expected %d runs, got %d", len(jobs), got)
	}
	if n := FailedJobs(results); n != 1 {
		t.Errorf("expected 1 failed job, got %d", n)
	}
	if results[1].ExitCode != 65 {
		t.Errorf("expected exit code 65, got %d", results[1].ExitCode)
	}
	if results[1].Error == nil || results[1].Error.Type != models.ErrJobFailed {
		t.Errorf("expected job_failed error, got %+v", results[1].Error)
	}
}

func TestRunJobsCancelledBeforeSubmit(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeFramework(t, dir, 10)
	jobs, _ := writeConfigs(t, dir, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewPool(fake, dir, 2).RunJobs(ctx, testCommands, jobs)
	if got := len(fake.calls("cmsRun")); got != 0 {
		t.Errorf("expected no runs after cancellation, got %d", got)
	}
	if n := FailedJobs(results); n != len(jobs) {
		t.Errorf("expected all jobs marked failed, got %d", n)
	}
}

func TestCompareAllPass(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeFramework(t, dir, 10)
	jobs, variants := writeConfigs(t, dir, 3)
	pool := NewPool(fake, dir, 2)
	pool.RunJobs(context.Background(), testCommands, jobs)

	comparisons, err := pool.Compare(context.Background(), testCommands, command.BaseResult, variants, 10)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	for _, c := range comparisons {
		if !c.Passed {
			t.Errorf("%s: expected pass, got %q", c.Path, c.Message)
		}
		if _, err := os.Stat(filepath.Join(dir, "diff_"+c.Path+".log")); err != nil {
			t.Errorf("expected diff log for %s: %v", c.Path, err)
		}
	}
}

func TestCompareMismatch(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeFramework(t, dir, 10)
	jobs, variants := writeConfigs(t, dir, 4)
	pool := NewPool(fake, dir, 2)
	pool.RunJobs(context.Background(), testCommands, jobs)

	bad := variants[2].ResultFile
	fake.diffOutput[bad] = "Found 10 matching events, out of which 3 have different HLT results\n"

	comparisons, err := pool.Compare(context.Background(), testCommands, command.BaseResult, variants, 10)
	if !errors.Is(err, &models.StageError{Type: models.ErrComparisonMismatch}) {
		t.Fatalf("expected comparison_mismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), bad) {
		t.Errorf("error should name %s: %v", bad, err)
	}

	// Every submitted comparison still runs.
	if got := len(fake.calls("hltDiff")); got != len(variants) {
		t.Errorf("expected %d diffs, got %d", len(variants), got)
	}
	if comparisons[2].Passed {
		t.Error("expected mismatching comparison to fail")
	}
}

func TestCompareWrongEventCount(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeFramework(t, dir, 5)
	jobs, variants := writeConfigs(t, dir, 1)
	pool := NewPool(fake, dir, 1)
	pool.RunJobs(context.Background(), testCommands, jobs)

	// The differ reports 5 clean events but 10 were requested.
	_, err := pool.Compare(context.Background(), testCommands, command.BaseResult, variants, 10)
	if err == nil {
		t.Fatal("expected mismatch when event counts differ")
	}
}

func TestCompareMissingResult(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeFramework(t, dir, 10)
	_, variants := writeConfigs(t, dir, 1)

	comparisons, err := NewPool(fake, dir, 1).Compare(context.Background(), testCommands, command.BaseResult, variants, 10)
	if err == nil {
		t.Fatal("expected error for missing result file")
	}
	if !strings.Contains(comparisons[0].Message, variants[0].ResultFile) {
		t.Errorf("message should name the result file: %q", comparisons[0].Message)
	}
	if got := len(fake.calls("hltDiff")); got != 0 {
		t.Errorf("differ should not run without a result file, got %d calls", got)
	}
}
