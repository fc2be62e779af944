package models

import "time"

// EnvironmentType selects where external commands are executed.
type EnvironmentType string

const (
	EnvironmentLocal  EnvironmentType = "local"
	EnvironmentDocker EnvironmentType = "docker"
)

// RunConfig is the fully resolved configuration of a validation run.
type RunConfig struct {
	GlobalTag       string            `yaml:"globaltag" json:"globaltag"`
	Geometry        string            `yaml:"geometry" json:"geometry"`
	Era             string            `yaml:"era" json:"era"`
	Events          int               `yaml:"events" json:"events"`
	Threads         int               `yaml:"threads" json:"threads"`
	ParallelJobs    int               `yaml:"parallel_jobs" json:"parallel_jobs"`
	RestrictPathsTo []string          `yaml:"restrict_paths_to,omitempty" json:"restrict_paths_to,omitempty"`
	ProcModifiers   string            `yaml:"proc_modifiers,omitempty" json:"proc_modifiers,omitempty"`
	CachedInput     string            `yaml:"cached_input,omitempty" json:"cached_input,omitempty"`
	DryRun          bool              `yaml:"dry_run" json:"dry_run"`
	WorkDir         string            `yaml:"work_dir" json:"work_dir"`
	Commands        CommandsConfig    `yaml:"commands" json:"commands"`
	Environment     EnvironmentConfig `yaml:"environment" json:"environment"`
}

// CommandsConfig names the external executables driven by a run.
type CommandsConfig struct {
	Generator string `yaml:"generator" json:"generator"`
	Dumper    string `yaml:"dumper" json:"dumper"`
	Runner    string `yaml:"runner" json:"runner"`
	Differ    string `yaml:"differ" json:"differ"`
}

// EnvironmentConfig describes the execution environment for external commands.
type EnvironmentConfig struct {
	Type EnvironmentType `yaml:"type" json:"type"`
	// Name is the container name for docker environments; generated when empty.
	Name   string   `yaml:"name,omitempty" json:"name,omitempty"`
	Setup  string   `yaml:"setup,omitempty" json:"setup,omitempty"`
	Image  string   `yaml:"image,omitempty" json:"image,omitempty"`
	Pull   bool     `yaml:"pull,omitempty" json:"pull,omitempty"`
	CPUs   string   `yaml:"cpus,omitempty" json:"cpus,omitempty"`
	Memory string   `yaml:"memory,omitempty" json:"memory,omitempty"`
	Mounts []string `yaml:"mounts,omitempty" json:"mounts,omitempty"`
	// Env is exported to every framework command.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Defaults is the conditions/era module providing fallback run values.
type Defaults struct {
	GlobalTag    string `toml:"globaltag"`
	Geometry     string `toml:"geometry"`
	Era          string `toml:"era"`
	Events       int    `toml:"events"`
	Threads      int    `toml:"threads"`
	ParallelJobs int    `toml:"parallel_jobs"`
}

// Variant is a configuration file derived from the dump that runs a single path.
type Variant struct {
	Path       string `json:"path"`
	ConfigFile string `json:"config_file"`
	ResultFile string `json:"result_file"`
	Isolated   bool   `json:"isolated"`
}

// Job is one invocation of the event-processing runner.
type Job struct {
	Name       string
	ConfigFile string
	LogFile    string
}

// JobResult is the outcome of a single Job.
type JobResult struct {
	Name        string      `json:"name"`
	ConfigFile  string      `json:"config_file"`
	LogFile     string      `json:"log_file"`
	ExitCode    int         `json:"exit_code"`
	DurationSec float64     `json:"duration_sec"`
	Error       *StageError `json:"error,omitempty"`
}

// Failed reports whether the job did not complete successfully.
func (r JobResult) Failed() bool {
	return r.ExitCode != 0 || r.Error != nil
}

// Comparison is the outcome of diffing one path's results against the baseline.
type Comparison struct {
	Path       string `json:"path"`
	ResultFile string `json:"result_file"`
	Passed     bool   `json:"passed"`
	Message    string `json:"message,omitempty"`
}

// StageTiming records the wall time spent in one pipeline stage.
type StageTiming struct {
	Name        string  `json:"name"`
	DurationSec float64 `json:"duration_sec"`
	Skipped     bool    `json:"skipped,omitempty"`
}

// RunSummary aggregates a complete validation run.
type RunSummary struct {
	Config           RunConfig     `json:"config"`
	DiscoveredPaths  int           `json:"discovered_paths"`
	SelectedPaths    []string      `json:"selected_paths"`
	UnmatchedFilters []string      `json:"unmatched_filters,omitempty"`
	Variants         []Variant     `json:"variants"`
	Stages           []StageTiming `json:"stages"`
	Jobs             []JobResult   `json:"jobs,omitempty"`
	FailedJobs       int           `json:"failed_jobs"`
	Comparisons      []Comparison  `json:"comparisons,omitempty"`
	Error            *StageError   `json:"error,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          time.Time     `json:"ended_at"`
	TotalDurationSec float64       `json:"total_duration_sec"`
}
