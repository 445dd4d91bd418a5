package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ultrathink/internal/ci"
	"ultrathink/internal/diffing"
	"ultrathink/internal/validate"
)

var (
	reportPackage   string
	reportOutput    string
	reportTolerance string
	reportOverride  string
	reportActor     string
)

// generatePRReportCmd runs every gate and renders the report
var generatePRReportCmd = &cobra.Command{
	Use:   "generate-pr-report",
	Short: "Evaluate documentation gates and render the PR report",
	Long: `Runs the completeness check, doctest validation, and an API diff against
the tracked current version, evaluates the configured CI gates, and renders
a markdown report.

With --output the report is written to a file for posting on the pull
request; otherwise it is rendered to the terminal. A failed gate exits
non-zero unless --override-reason records an authorized override.`,
	RunE: runGeneratePRReport,
}

func init() {
	generatePRReportCmd.Flags().StringVar(&reportPackage, "package", "", "package name (overrides config)")
	generatePRReportCmd.Flags().StringVar(&reportOutput, "output", "", "write the markdown report to this path")
	generatePRReportCmd.Flags().StringVar(&reportTolerance, "tolerance", ci.ToleranceNone, "breaking-change tolerance: none, low, medium, high")
	generatePRReportCmd.Flags().StringVar(&reportOverride, "override-reason", "", "record an override with this reason instead of failing")
	generatePRReportCmd.Flags().StringVar(&reportActor, "override-actor", "", "who authorized the override")
}

func runGeneratePRReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(reportPackage)
	if err != nil {
		return err
	}
	layout := projectLayout()
	if err := layout.Ensure(); err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()

	api, err := extractAPI(ctx, cfg)
	if err != nil {
		return err
	}

	in := ci.GateInputs{NewAPI: &api}

	completeness, err := validate.NewCompletenessChecker(layout, logger).
		Check(api, cfg.Validation.CompletenessThreshold)
	if err != nil {
		return err
	}
	in.Completeness = &completeness

	doctests, err := validate.NewDoctestValidator(layout, cfg.Validation.DoctestMode, logger).
		ValidatePackage(ctx, api)
	if err != nil {
		return err
	}
	in.Doctests = &doctests

	// Diff against the tracked current version when one exists.
	if base, err := trackedCurrentVersion(layout); err != nil {
		return err
	} else if base != "" {
		differ := diffing.NewDiffer(layout, logger)
		baseSnap, err := differ.LoadSnapshot(base)
		if err == nil {
			fresh, err := differ.BuildSnapshot(api, "worktree", nil)
			if err != nil {
				return err
			}
			diff := differ.CompareSnapshots(baseSnap, fresh)
			in.Diff = &diff
		} else {
			logger.Warn("tracked version has no snapshot, skipping diff gates",
				zap.String("version", base), zap.Error(err))
		}
	}

	gk := ci.NewGatekeeper(layout, cfg, reportTolerance, logger)
	result := gk.Evaluate(in)

	if !result.Passed && reportOverride != "" {
		result, err = gk.Override(result, reportActor, reportOverride)
		if err != nil {
			return err
		}
	}

	report := ci.RenderGateReport(result)

	if reportOutput != "" {
		if err := os.WriteFile(reportOutput, []byte(report), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("%s Report written to %s\n", passFailMark(result.Passed), reportOutput)
	} else {
		rendered, err := glamour.Render(report, "auto")
		if err != nil {
			// Fall back to the raw markdown when the terminal renderer balks.
			rendered = report
		}
		fmt.Print(rendered)
	}

	if !result.Passed {
		return fmt.Errorf("documentation gates failed")
	}
	return nil
}
