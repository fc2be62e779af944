// Package paths discovers trigger paths in a dumped configuration and derives
// configurations that run a single path each.
//
// The dump is handled as text: only the path definitions, the schedule list
// literal and the output file name are interpreted. A dump whose schedule is
// formatted unusually can leave a path un-isolated, which Derive reports.
package paths

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spachava753/hltcheck/internal/models"
)

var (
	// pathDefinition matches a trigger path definition in the dump.
	pathDefinition = regexp.MustCompile(`(?m)^\s*process\.((?:HLT|MC|L1T)_\w+)\s*=\s*cms\.Path\(`)

	// scheduleList captures the body of the schedule list literal.
	scheduleList = regexp.MustCompile(`(?s)(process\.schedule\s*=\s*cms\.Schedule\(\s*\*?\s*\[)(.*?)(\])`)

	// removable matches schedule entries dropped from single-path variants.
	removable = []*regexp.Regexp{
		regexp.MustCompile(`^process\.HLT_\w+$`),
		regexp.MustCompile(`^process\.MC_\w+$`),
	}

	// outputFileName matches the output module's file name literal.
	outputFileName = regexp.MustCompile(`fileName\s*=\s*cms\.untracked\.string\(\s*['"][^'"]*['"]\s*\)`)
)

// ConfigFileName is the file a path's derived configuration is written to.
func ConfigFileName(name string) string {
	return "hlt_" + name + ".py"
}

// ResultFileName is the output file produced by running a path's configuration.
func ResultFileName(name string) string {
	return "output_" + name + ".root"
}

// Discover returns the sorted, deduplicated trigger path names defined in text.
func Discover(text string) ([]string, error) {
	var names []string
	for _, m := range pathDefinition.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}

	if len(names) == 0 {
		return nil, models.NewStageError(models.ErrNoPathsFound, "no trigger paths found in dumped configuration")
	}

	slices.Sort(names)
	return slices.Compact(names), nil
}

// Restrict keeps the names matching at least one shell-style wildcard
// pattern. It also returns the patterns that matched nothing. An empty
// pattern list keeps every name.
func Restrict(names, patterns []string) (kept, unmatched []string, err error) {
	if len(patterns) == 0 {
		return names, nil, nil
	}

	selected := make(map[string]bool)
	for _, p := range patterns {
		matched := false
		for _, name := range names {
			ok, err := path.Match(p, name)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid path pattern %q: %w", p, err)
			}
			if ok {
				selected[name] = true
				matched = true
			}
		}
		if !matched {
			unmatched = append(unmatched, p)
		}
	}

	for _, name := range names {
		if selected[name] {
			kept = append(kept, name)
		}
	}

	if len(kept) == 0 {
		return nil, unmatched, models.NewStageError(models.ErrNoPatternMatch,
			"no trigger paths match %s", strings.Join(patterns, ", "))
	}

	return kept, unmatched, nil
}

// Derive rewrites text so that the schedule retains target as its only
// HLT_/MC_ path and the output file is named after target. all must contain
// target. The returned flag reports whether target is present in the
// rewritten schedule.
func Derive(text, target string, all []string) (string, bool, error) {
	if !slices.Contains(all, target) {
		return "", false, fmt.Errorf("path %s is not among the discovered paths", target)
	}

	loc := scheduleList.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false, models.NewStageError(models.ErrScheduleNotFound,
			"schedule list not found in dumped configuration")
	}
	bodyStart, bodyEnd := loc[4], loc[5]

	keep := "process." + target
	var entries []string
	isolated := false
	for _, raw := range strings.Split(text[bodyStart:bodyEnd], ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if entry == keep {
			isolated = true
			entries = append(entries, entry)
			continue
		}
		if isRemovable(entry) {
			continue
		}
		entries = append(entries, entry)
	}

	rewritten := text[:bodyStart] + " " + strings.Join(entries, ", ") + " " + text[bodyEnd:]

	// Every variant writes its own result file; a second output module
	// would collide across variants.
	switch n := len(outputFileName.FindAllStringIndex(rewritten, -1)); n {
	case 1:
	case 0:
		return "", false, models.NewStageError(models.ErrOutputNotFound,
			"output file name not found in dumped configuration")
	default:
		return "", false, models.NewStageError(models.ErrOutputNotFound,
			"expected one output file name in dumped configuration, found %d", n)
	}
	output := fmt.Sprintf("fileName = cms.untracked.string('file:%s')", ResultFileName(target))
	rewritten = outputFileName.ReplaceAllLiteralString(rewritten, output)

	return rewritten, isolated, nil
}

func isRemovable(entry string) bool {
	for _, re := range removable {
		if re.MatchString(entry) {
			return true
		}
	}
	return false
}

// WriteVariants derives and writes one configuration per target into dir.
func WriteVariants(dir, text string, targets, all []string) ([]models.Variant, error) {
	variants := make([]models.Variant, 0, len(targets))
	for _, target := range targets {
		derived, isolated, err := Derive(text, target, all)
		if err != nil {
			return nil, err
		}

		v := models.Variant{
			Path:       target,
			ConfigFile: ConfigFileName(target),
			ResultFile: ResultFileName(target),
			Isolated:   isolated,
		}
		if err := os.WriteFile(filepath.Join(dir, v.ConfigFile), []byte(derived), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", v.ConfigFile, err)
		}
		variants = append(variants, v)
	}
	return variants, nil
}
