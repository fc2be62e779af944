package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spachava753/hltcheck/internal/environment"
)

// Provider runs commands directly on the host.
type Provider struct{}

// NewProvider creates a new local provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "local"
}

// CreateEnvironment returns a host environment rooted at opts.WorkDir.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	shell, err := exec.LookPath("bash")
	if err != nil {
		return nil, fmt.Errorf("bash not found: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = "local"
	}

	return &LocalEnvironment{
		name:    name,
		shell:   shell,
		workDir: opts.WorkDir,
		setup:   opts.Setup,
		env:     opts.Env,
	}, nil
}

// LocalEnvironment executes commands with bash on the host.
type LocalEnvironment struct {
	name    string
	shell   string
	workDir string
	setup   string
	env     map[string]string
}

// ID returns the environment name.
func (e *LocalEnvironment) ID() string {
	return e.name
}

// Exec runs cmd through bash -c.
func (e *LocalEnvironment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	script := environment.WithSetup(e.setup, cmd)
	slog.Debug("exec", "env", e.name, "cmd", cmd)

	execCmd := exec.CommandContext(ctx, e.shell, "-c", script)
	execCmd.Dir = e.workDir
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	if len(e.env) > 0 {
		execCmd.Env = os.Environ()
		for k, v := range e.env {
			execCmd.Env = append(execCmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	err := execCmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("executing command: %w", err)
	}

	return 0, nil
}

// Destroy is a no-op for host environments.
func (e *LocalEnvironment) Destroy(ctx context.Context) error {
	return nil
}
