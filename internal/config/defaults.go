package config

import (
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/spachava753/hltcheck/internal/models"
)

// DefaultDefaults returns the built-in conditions/era values for Phase-2 HLT.
func DefaultDefaults() models.Defaults {
	return models.Defaults{
		GlobalTag:    "auto:phase2_realistic_T33",
		Geometry:     "ExtendedRun4D110",
		Era:          "Phase2C17I13M9",
		Events:       10,
		Threads:      1,
		ParallelJobs: 4,
	}
}

// LoadDefaults loads a conditions/era defaults file from the given filesystem.
// Keys absent from the file keep their built-in values.
func LoadDefaults(fsys fs.FS, name string) (models.Defaults, error) {
	d := DefaultDefaults()

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return d, fmt.Errorf("reading %s: %w", name, err)
	}

	md, err := toml.Decode(string(data), &d)
	if err != nil {
		return d, fmt.Errorf("parsing %s: %w", name, err)
	}

	for _, key := range md.Undecoded() {
		slog.Warn("ignoring unknown key in defaults file", "file", name, "key", key.String())
	}

	// An explicitly empty string would silently produce a broken generator command
	required := map[string]string{
		"globaltag": d.GlobalTag,
		"geometry":  d.Geometry,
		"era":       d.Era,
	}
	for key, v := range required {
		if md.IsDefined(key) && v == "" {
			return d, fmt.Errorf("%s: %q must not be empty", name, key)
		}
	}

	return d, nil
}
