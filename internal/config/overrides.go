package config

import "github.com/spachava753/hltcheck/internal/models"

// Overrides holds values given explicitly on the command line. Nil fields
// leave the configuration untouched.
type Overrides struct {
	GlobalTag       *string
	Geometry        *string
	Era             *string
	Events          *int
	Threads         *int
	ParallelJobs    *int
	RestrictPathsTo []string
	ProcModifiers   *string
	CachedInput     *string
	DryRun          *bool
	WorkDir         *string
}

// Apply returns cfg with the overrides applied.
func Apply(cfg models.RunConfig, o Overrides) models.RunConfig {
	setString(&cfg.GlobalTag, o.GlobalTag)
	setString(&cfg.Geometry, o.Geometry)
	setString(&cfg.Era, o.Era)
	setString(&cfg.ProcModifiers, o.ProcModifiers)
	setString(&cfg.CachedInput, o.CachedInput)
	setString(&cfg.WorkDir, o.WorkDir)

	if o.Events != nil {
		cfg.Events = *o.Events
	}
	if o.Threads != nil {
		cfg.Threads = *o.Threads
	}
	if o.ParallelJobs != nil {
		cfg.ParallelJobs = *o.ParallelJobs
	}
	if o.DryRun != nil {
		cfg.DryRun = *o.DryRun
	}
	if len(o.RestrictPathsTo) > 0 {
		cfg.RestrictPathsTo = append([]string(nil), o.RestrictPathsTo...)
	}

	return cfg
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
