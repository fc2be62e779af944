package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spachava753/hltcheck/internal/command"
	"github.com/spachava753/hltcheck/internal/environment"
)

var outputName = regexp.MustCompile(`fileName = cms\.untracked\.string\('file:([^']+)'\)`)

// fakeFramework stands in for the CMS executables. It produces the files the
// real tools would write so that every stage can run against a temp dir.
type fakeFramework struct {
	t       *testing.T
	workDir string
	dump    string
	events  int

	// Exit codes by command kind ("generator", "baseline", "dump") or config file.
	exitCodes map[string]int
	// Differ output by compared result file; defaults to a clean comparison.
	diffOutput map[string]string
	// Configs whose run produces no output file.
	noOutput map[string]bool
	delay    time.Duration

	created environment.CreateEnvironmentOptions

	mu       sync.Mutex
	commands []string

	running    atomic.Int32
	maxRunning atomic.Int32
}

func newFakeFramework(t *testing.T, workDir string, events int) *fakeFramework {
	t.Helper()
	dump, err := os.ReadFile(filepath.Join("testdata", "hlt_dump.py"))
	if err != nil {
		t.Fatalf("reading dump fixture: %v", err)
	}
	return &fakeFramework{
		t:          t,
		workDir:    workDir,
		dump:       string(dump),
		events:     events,
		exitCodes:  make(map[string]int),
		diffOutput: make(map[string]string),
		noOutput:   make(map[string]bool),
	}
}

func (f *fakeFramework) Name() string { return "fake" }

func (f *fakeFramework) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	f.workDir = opts.WorkDir
	f.created = opts
	return f, nil
}

func (f *fakeFramework) ID() string { return "fake" }

func (f *fakeFramework) Destroy(ctx context.Context) error { return nil }

func (f *fakeFramework) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		cur := f.maxRunning.Load()
		if n <= cur || f.maxRunning.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	fields := strings.Fields(cmd)
	switch {
	case strings.HasPrefix(cmd, "cmsDriver.py Phase2"):
		f.write(command.BaseConfig, "# generated\n")
		return f.exitCodes["generator"], nil

	case strings.HasPrefix(cmd, "cmsDriver.py"):
		f.write(command.BaselineConfig, "# baseline\n")
		if !strings.Contains(cmd, "--no_exec") {
			f.write(command.BaselineEvents, "events")
		}
		return f.exitCodes["baseline"], nil

	case strings.HasPrefix(cmd, "edmConfigDump"):
		io.WriteString(stdout, f.dump)
		return f.exitCodes["dump"], nil

	case strings.HasPrefix(cmd, "cmsRun"):
		config := fields[1]
		data, err := os.ReadFile(filepath.Join(f.workDir, config))
		if err != nil {
			return -1, fmt.Errorf("reading %s: %w", config, err)
		}
		fmt.Fprintf(stdout, "running %s\n", config)
		if code := f.exitCodes[config]; code != 0 {
			return code, nil
		}
		m := outputName.FindStringSubmatch(string(data))
		if m == nil {
			return 1, nil
		}
		if !f.noOutput[config] {
			f.write(m[1], "results")
		}
		return 0, nil

	case strings.HasPrefix(cmd, "hltDiff"):
		newFile := fields[len(fields)-1]
		if out, ok := f.diffOutput[newFile]; ok {
			io.WriteString(stdout, out)
			return 0, nil
		}
		fmt.Fprintf(stdout, "Processed events: %d\n%s\n", f.events, command.ExpectedDiffSummary(f.events))
		return 0, nil
	}

	f.t.Errorf("unexpected command %q", cmd)
	return 127, nil
}

func (f *fakeFramework) write(name, content string) {
	if err := os.WriteFile(filepath.Join(f.workDir, name), []byte(content), 0644); err != nil {
		f.t.Errorf("writing %s: %v", name, err)
	}
}

// calls returns the recorded commands starting with prefix.
func (f *fakeFramework) calls(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
