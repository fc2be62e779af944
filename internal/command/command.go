// Package command builds the shell command lines that drive the CMS software
// framework: configuration generation, dumping, running and result diffing.
package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spachava753/hltcheck/internal/models"
)

// Files produced in the working directory by the base stages.
const (
	BaseConfig      = "hlt_base.py"
	BaseDump        = "hlt_base_dump.py"
	BaseResult      = "output_base.root"
	BaselineConfig  = "baseline_gen.py"
	BaselineEvents  = "baseline_events.root"
	BaselineGenName = "baseline_gen"
)

const (
	hltStep      = "L1P2GT,HLT:75e33"
	baselineStep = "GEN,SIM,DIGI:pdigi_valid,L1TrackTrigger,L1,L1P2GT,DIGI2RAW,HLT:75e33"
	fragment     = "TTbar_14TeV_TuneCP5_cfi"
	inputKeep    = "keep *, drop *_hlt*_*_HLT, drop triggerTriggerFilterObjectWithRefs_l1t*_*_HLT"
)

// line accumulates a command and its shell-quoted arguments.
type line struct {
	parts []string
}

func newLine(executable string, args ...string) *line {
	l := &line{parts: []string{Quote(executable)}}
	return l.arg(args...)
}

func (l *line) arg(args ...string) *line {
	for _, a := range args {
		l.parts = append(l.parts, Quote(a))
	}
	return l
}

func (l *line) flag(name, value string) *line {
	return l.arg(name, value)
}

func (l *line) String() string {
	return strings.Join(l.parts, " ")
}

// InputFile renders a local path or logical file name as a generator input.
func InputFile(p string) string {
	if strings.HasPrefix(p, "/store/") || strings.Contains(p, ":") {
		return p
	}
	return "file:" + p
}

// Generator returns the command generating the base HLT configuration.
// The configuration reads cfg.CachedInput when set and the baseline events
// otherwise.
func Generator(cfg models.RunConfig) string {
	input := BaselineEvents
	if cfg.CachedInput != "" {
		input = cfg.CachedInput
	}

	l := newLine(cfg.Commands.Generator, "Phase2").
		flag("-s", hltStep).
		arg("--processName=HLTX").
		flag("--conditions", cfg.GlobalTag).
		flag("--geometry", cfg.Geometry).
		flag("--era", cfg.Era).
		flag("--eventcontent", "FEVTDEBUGHLT").
		flag("--datatier", "GEN-SIM-DIGI-RAW-MINIAOD").
		flag("--filein", InputFile(input)).
		flag("--fileout", "file:"+BaseResult).
		flag("-n", strconv.Itoa(cfg.Events)).
		flag("--nThreads", strconv.Itoa(cfg.Threads)).
		flag("--python_filename", BaseConfig).
		flag("--inputCommands", inputKeep).
		arg("--mc", "--no_exec")

	if cfg.ProcModifiers != "" {
		l.flag("--procModifiers", cfg.ProcModifiers)
	}
	return l.String()
}

// Baseline returns the command generating the baseline event sample. With
// dryRun set only the configuration is written.
func Baseline(cfg models.RunConfig, dryRun bool) string {
	l := newLine(cfg.Commands.Generator, fragment).
		flag("-s", baselineStep).
		flag("--conditions", cfg.GlobalTag).
		flag("--geometry", cfg.Geometry).
		flag("--era", cfg.Era).
		flag("--eventcontent", "FEVTDEBUGHLT").
		flag("--datatier", "GEN-SIM-DIGI-RAW").
		flag("--beamspot", "DBrealisticHLLHC").
		flag("--fileout", "file:"+BaselineEvents).
		flag("-n", strconv.Itoa(cfg.Events)).
		flag("--nThreads", strconv.Itoa(cfg.Threads)).
		flag("--python_filename", BaselineConfig).
		arg("--mc")

	if cfg.ProcModifiers != "" {
		l.flag("--procModifiers", cfg.ProcModifiers)
	}
	if dryRun {
		l.arg("--no_exec")
	}
	return l.String()
}

// Dump returns the command rendering pythonFile as flat text on stdout.
func Dump(cmds models.CommandsConfig, pythonFile string) string {
	return newLine(cmds.Dumper, pythonFile).String()
}

// Run returns the command executing configFile.
func Run(cmds models.CommandsConfig, configFile string) string {
	return newLine(cmds.Runner, configFile).String()
}

// Diff returns the command comparing trigger results of newFile against baseFile.
func Diff(cmds models.CommandsConfig, baseFile, newFile string) string {
	return newLine(cmds.Differ, "-o", baseFile, "-n", newFile).String()
}

// ExpectedDiffSummary is the differ output reporting identical results for events events.
func ExpectedDiffSummary(events int) string {
	return fmt.Sprintf("Found %d matching events, out of which 0 have different HLT results", events)
}

var safeArg = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// Quote returns s quoted for bash when it contains shell metacharacters.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if safeArg.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
