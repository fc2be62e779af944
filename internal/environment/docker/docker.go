package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spachava753/hltcheck/internal/environment"
	"github.com/spachava753/hltcheck/internal/util"
)

// Provider implements the Docker environment provider.
type Provider struct {
	pull bool
}

// NewProvider creates a new Docker provider. When pull is set the image is
// pulled before the container is started.
func NewProvider(pull bool) *Provider {
	return &Provider{pull: pull}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "docker"
}

// PullImage pulls a pre-built image from a registry.
func (p *Provider) PullImage(ctx context.Context, imageRef string) error {
	cmd := exec.CommandContext(ctx, "docker", "pull", imageRef)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pulling docker image: %w", err)
	}

	return nil
}

// CreateEnvironment starts a long-lived container with the working directory
// bind-mounted at the same absolute path.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("docker environment requires an image")
	}

	if p.pull {
		if err := p.PullImage(ctx, opts.Image); err != nil {
			return nil, err
		}
	}

	workDir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work dir: %w", err)
	}

	args, containerID, err := runArgs(opts, workDir)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("creating docker container: %w: %s", err, stderr.String())
	}

	slog.Debug("docker container started", "container", containerID, "image", opts.Image)

	return &DockerEnvironment{
		containerID: containerID,
		workDir:     workDir,
		setup:       opts.Setup,
	}, nil
}

// runArgs builds the docker run invocation for opts.
func runArgs(opts environment.CreateEnvironmentOptions, workDir string) ([]string, string, error) {
	containerID := opts.Name
	if containerID == "" {
		containerID = fmt.Sprintf("hltcheck-%d", time.Now().UnixNano())
	}

	args := []string{
		"run",
		"-d",
		"--name", containerID,
		"-v", fmt.Sprintf("%s:%s", workDir, workDir),
		"-w", workDir,
	}

	for _, m := range opts.Mounts {
		args = append(args, "-v", m)
	}

	if opts.CPUs != "" {
		args = append(args, "--cpus", opts.CPUs)
	}
	if opts.Memory != "" {
		mem, err := util.DockerMemory(opts.Memory)
		if err != nil {
			return nil, "", fmt.Errorf("parsing memory limit: %w", err)
		}
		if mem != "" {
			args = append(args, "--memory", mem)
		}
	}

	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	args = append(args, opts.Image)
	// Keep container running with sleep infinity
	args = append(args, "sleep", "infinity")

	return args, containerID, nil
}

// DockerEnvironment represents a running Docker container.
type DockerEnvironment struct {
	containerID string
	workDir     string
	setup       string
}

// ID returns the container ID.
func (e *DockerEnvironment) ID() string {
	return e.containerID
}

// Exec executes a command in the container.
func (e *DockerEnvironment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	execCmd := exec.CommandContext(ctx, "docker", e.execArgs(cmd)...)
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

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

// execArgs builds the docker exec invocation. Variables set with -e on
// docker run are inherited by every exec.
func (e *DockerEnvironment) execArgs(cmd string) []string {
	args := []string{"exec"}
	if e.workDir != "" {
		args = append(args, "-w", e.workDir)
	}

	return append(args, e.containerID, "bash", "-c", environment.WithSetup(e.setup, cmd))
}

// Destroy removes the container and cleans up resources.
func (e *DockerEnvironment) Destroy(ctx context.Context) error {
	// Force remove the container
	cmd := exec.CommandContext(ctx, "docker", "rm", "-f", e.containerID)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// Ignore error if container already removed
		if !strings.Contains(stderr.String(), "No such container") {
			return fmt.Errorf("removing container: %w", err)
		}
	}
	return nil
}
