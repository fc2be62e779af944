package environment

import (
	"context"
	"io"
)

// Environment runs the framework's executables for one validation run.
type Environment interface {
	// ID returns the unique identifier for this environment.
	ID() string

	// Exec executes a shell command in the environment's working directory,
	// streaming stdout and stderr to the provided writers.
	// Returns the command's exit code, or an error if it could not be run at all.
	Exec(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error)

	// Destroy releases all resources held by the environment.
	Destroy(ctx context.Context) error
}

// Provider is a factory for creating environments.
type Provider interface {
	// Name returns the provider name (e.g., "local", "docker").
	Name() string

	// CreateEnvironment prepares an environment in which commands can be run.
	CreateEnvironment(ctx context.Context, opts CreateEnvironmentOptions) (Environment, error)
}

// CreateEnvironmentOptions configures environment creation.
type CreateEnvironmentOptions struct {
	// Name identifies the environment; container providers use it as the
	// container name and generate one when empty.
	Name string
	// WorkDir is the host directory commands operate in. Container providers
	// mount it at the same path.
	WorkDir string
	// Setup is a shell snippet run before every command (e.g. cmsenv).
	Setup  string
	Image  string
	CPUs   string
	Memory string
	Mounts []string
	// Env is added to the environment of every command.
	Env map[string]string
}

// WithSetup prefixes cmd with the setup snippet, if any.
func WithSetup(setup, cmd string) string {
	if setup == "" {
		return cmd
	}
	return setup + " && " + cmd
}
