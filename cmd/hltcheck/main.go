package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spachava753/hltcheck/internal/config"
	"github.com/spachava753/hltcheck/internal/executor"
	"github.com/spachava753/hltcheck/internal/models"
	"github.com/spachava753/hltcheck/internal/report"
)

var (
	globalTag       string
	geometry        string
	era             string
	events          int
	threads         int
	parallelJobs    int
	restrictPathsTo []string
	procModifiers   string
	cachedInput     string
	dryRun          bool

	configPath   string
	defaultsPath string
	workDir      string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "hltcheck",
	Short: "Check that every HLT path run alone reproduces the combined menu's results",
	Long: `hltcheck generates the Phase-2 HLT configuration, derives one configuration
per trigger path from its dump, runs all of them and compares each path's
trigger results against the run of the full menu with hltDiff.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	RunE: run,
}

func init() {
	d := config.DefaultDefaults()
	f := rootCmd.Flags()
	f.StringVar(&globalTag, "globaltag", d.GlobalTag, "conditions global tag")
	f.StringVar(&geometry, "geometry", d.Geometry, "detector geometry")
	f.StringVar(&era, "era", d.Era, "era")
	f.IntVar(&events, "events", d.Events, "number of events to process")
	f.IntVar(&threads, "threads", d.Threads, "threads per job")
	f.IntVar(&parallelJobs, "parallelJobs", d.ParallelJobs, "number of jobs run in parallel")
	f.StringSliceVar(&restrictPathsTo, "restrictPathsTo", nil, "only test paths matching these wildcard patterns")
	f.StringVar(&procModifiers, "procModifiers", "", "process modifiers passed to the configuration generator")
	f.StringVar(&cachedInput, "cachedInput", "", "existing input file; skips baseline event generation")
	f.BoolVar(&dryRun, "dryRun", false, "only generate configurations")

	f.StringVar(&configPath, "config", "", "run configuration file (YAML)")
	f.StringVar(&defaultsPath, "defaults", "", "conditions/era defaults file (TOML)")
	f.StringVar(&workDir, "workDir", config.DefaultWorkDir, "working directory, recreated on every run")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig resolves the run configuration: built-in defaults, the defaults
// file, the run file and finally explicitly set flags.
func loadConfig(cmd *cobra.Command) (models.RunConfig, error) {
	d := config.DefaultDefaults()
	if defaultsPath != "" {
		var err error
		d, err = config.LoadDefaults(os.DirFS(filepath.Dir(defaultsPath)), filepath.Base(defaultsPath))
		if err != nil {
			return models.RunConfig{}, fmt.Errorf("loading defaults: %w", err)
		}
	}

	cfg := config.DefaultRunConfig(d)
	if configPath != "" {
		var err error
		cfg, err = config.LoadRunConfig(configPath, d)
		if err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	var o config.Overrides
	if changed("globaltag") {
		o.GlobalTag = &globalTag
	}
	if changed("geometry") {
		o.Geometry = &geometry
	}
	if changed("era") {
		o.Era = &era
	}
	if changed("events") {
		o.Events = &events
	}
	if changed("threads") {
		o.Threads = &threads
	}
	if changed("parallelJobs") {
		o.ParallelJobs = &parallelJobs
	}
	if changed("restrictPathsTo") {
		o.RestrictPathsTo = restrictPathsTo
	}
	if changed("procModifiers") {
		o.ProcModifiers = &procModifiers
	}
	if changed("cachedInput") {
		o.CachedInput = &cachedInput
	}
	if changed("dryRun") {
		o.DryRun = &dryRun
	}
	if changed("workDir") {
		o.WorkDir = &workDir
	}

	cfg = config.Apply(cfg, o)
	if err := config.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(cmd.Context())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("interrupt received, waiting for running jobs...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	provider, err := executor.NewProvider(cfg.Environment)
	if err != nil {
		return err
	}

	summary, err := executor.NewOrchestrator(cfg, provider).Run(ctx)
	if summary != nil {
		fmt.Println(report.Render(summary))
	}
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("validation failed", "error", err)
		os.Exit(1)
	}
}
