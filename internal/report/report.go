package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spachava753/hltcheck/internal/models"
)

// SummaryFile is the name of the JSON summary written to the working directory.
const SummaryFile = "summary.json"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// WriteJSON writes summary as indented JSON to path.
func WriteJSON(path string, summary *models.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// Render formats summary for the terminal.
func Render(summary *models.RunSummary) string {
	var b strings.Builder

	status := passStyle.Render("PASSED")
	if summary.Error != nil {
		status = failStyle.Render("FAILED")
	} else if summary.Config.DryRun {
		status = skippedStyle.Render("DRY RUN")
	}
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("Single-path validation"), status)

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label), value)
	}

	row("Global tag", summary.Config.GlobalTag)
	row("Era", summary.Config.Era)
	row("Work dir", summary.Config.WorkDir)
	row("Paths", fmt.Sprintf("%d selected of %d discovered", len(summary.SelectedPaths), summary.DiscoveredPaths))
	if len(summary.UnmatchedFilters) > 0 {
		row("Unmatched", strings.Join(summary.UnmatchedFilters, ", "))
	}

	if len(summary.Stages) > 0 {
		b.WriteString("\n")
		for _, s := range summary.Stages {
			if s.Skipped {
				row(s.Name, skippedStyle.Render("skipped"))
				continue
			}
			row(s.Name, fmt.Sprintf("%.2fs", s.DurationSec))
		}
	}

	if len(summary.Jobs) > 0 {
		b.WriteString("\n")
		row("Jobs", fmt.Sprintf("%d run, %d failed", len(summary.Jobs), summary.FailedJobs))
		for _, j := range summary.Jobs {
			if j.Failed() {
				row("", failStyle.Render("✗ ")+fmt.Sprintf("%s (exit %d, %s)", j.Name, j.ExitCode, j.LogFile))
			}
		}
	}

	if len(summary.Comparisons) > 0 {
		passed, failed := Counts(summary.Comparisons)
		b.WriteString("\n")
		row("Comparisons", fmt.Sprintf("%d passed, %d failed", passed, failed))
		for _, c := range summary.Comparisons {
			if !c.Passed && c.Message != "" {
				row("", failStyle.Render("✗ ")+c.Message)
			}
		}
	}

	b.WriteString("\n")
	row("Duration", fmt.Sprintf("%.2fs", summary.TotalDurationSec))
	if summary.Error != nil {
		row("Error", failStyle.Render(summary.Error.Error()))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// Counts returns the number of passed and failed comparisons.
func Counts(comparisons []models.Comparison) (passed, failed int) {
	for _, c := range comparisons {
		if c.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
