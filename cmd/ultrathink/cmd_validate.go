package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ultrathink/internal/ci"
	"ultrathink/internal/validate"
)

var (
	validatePackage      string
	validateFailOnIncomp bool

	completenessPackage   string
	completenessThreshold float64

	doctestsPackage string

	stagedPackage string
)

// validateCmd runs every configured validation
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run all documentation validations",
	Long: `Runs doctest validation and the completeness check against the current
source tree. Failed doctests always fail the command; an incomplete score
fails it only with --fail-on-incomplete.`,
	RunE: runValidate,
}

// checkCompletenessCmd scores docstring coverage
var checkCompletenessCmd = &cobra.Command{
	Use:   "check-completeness",
	Short: "Score documentation completeness for the public API",
	RunE:  runCheckCompleteness,
}

// validateDoctestsCmd checks code examples
var validateDoctestsCmd = &cobra.Command{
	Use:   "validate-doctests",
	Short: "Validate doctest examples in docstrings and generated docs",
	RunE:  runValidateDoctests,
}

// checkStagedFilesCmd is the pre-commit entry point
var checkStagedFilesCmd = &cobra.Command{
	Use:   "check-staged-files",
	Short: "Check documentation for staged Python files",
	Long: `Intended for the git pre-commit hook: scores completeness for only the
Python files currently staged. Passes trivially when nothing relevant is
staged or pre-commit validation is disabled in the configuration.`,
	RunE: runCheckStagedFiles,
}

func init() {
	validateCmd.Flags().StringVar(&validatePackage, "package", "", "package name (overrides config)")
	validateCmd.Flags().BoolVar(&validateFailOnIncomp, "fail-on-incomplete", false, "exit non-zero when completeness is below threshold")

	checkCompletenessCmd.Flags().StringVar(&completenessPackage, "package", "", "package name (overrides config)")
	checkCompletenessCmd.Flags().Float64Var(&completenessThreshold, "threshold", 0, "required completeness (default: configured value)")

	validateDoctestsCmd.Flags().StringVar(&doctestsPackage, "package", "", "package name (overrides config)")

	checkStagedFilesCmd.Flags().StringVar(&stagedPackage, "package", "", "package name (overrides config)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(validatePackage)
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

	failed := false

	if cfg.Validation.ValidateDoctests {
		dv := validate.NewDoctestValidator(layout, cfg.Validation.DoctestMode, logger)
		result, err := dv.ValidatePackage(ctx, api)
		if err != nil {
			return err
		}
		fmt.Printf("%s Doctests: %d passed, %d failed, %d errors, %d skipped\n",
			passFailMark(result.Ok()), result.Passed, result.Failed, result.Errors, result.Skipped)
		if !result.Ok() {
			failed = true
			printDoctestFailures(result)
		}
	}

	if cfg.Validation.CheckCompleteness {
		cc := validate.NewCompletenessChecker(layout, logger)
		result, err := cc.Check(api, cfg.Validation.CompletenessThreshold)
		if err != nil {
			return err
		}
		fmt.Printf("%s Completeness: %.1f%% (threshold %.1f%%)\n",
			passFailMark(result.Passed),
			result.CompletenessPercent, cfg.Validation.CompletenessThreshold*100)
		if !result.Passed && validateFailOnIncomp {
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	fmt.Println("\n✓ All validations passed")
	return nil
}

func runCheckCompleteness(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(completenessPackage)
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

	threshold := completenessThreshold
	if threshold == 0 {
		threshold = cfg.Validation.CompletenessThreshold
	}

	result, err := validate.NewCompletenessChecker(layout, logger).Check(api, threshold)
	if err != nil {
		return err
	}
	fmt.Print(validate.RenderReport(result))
	if !result.Passed {
		return fmt.Errorf("completeness %.1f%% is below threshold %.1f%%",
			result.CompletenessPercent, threshold*100)
	}
	return nil
}

func runValidateDoctests(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(doctestsPackage)
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

	dv := validate.NewDoctestValidator(layout, cfg.Validation.DoctestMode, logger)
	result, err := dv.ValidatePackage(ctx, api)
	if err != nil {
		return err
	}

	fmt.Printf("Doctest validation (%s mode)\n", result.Mode)
	fmt.Printf("  Total:   %d\n", result.Total)
	fmt.Printf("  Passed:  %d\n", result.Passed)
	fmt.Printf("  Failed:  %d\n", result.Failed)
	fmt.Printf("  Errors:  %d\n", result.Errors)
	fmt.Printf("  Skipped: %d\n", result.Skipped)

	if !result.Ok() {
		printDoctestFailures(result)
		return fmt.Errorf("%d doctest(s) failed", result.Failed+result.Errors)
	}
	fmt.Println("\n✓ All doctests passed")
	return nil
}

func runCheckStagedFiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(stagedPackage)
	if err != nil {
		return err
	}
	if !cfg.CI.PreCommitValidation {
		fmt.Println("✓ Pre-commit validation disabled, skipping")
		return nil
	}
	layout := projectLayout()
	if err := layout.Ensure(); err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()

	staged, err := ci.NewPreCommit(projectRoot, logger).StagedPythonFiles(ctx)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		fmt.Println("✓ No staged Python files")
		return nil
	}

	api, err := extractAPI(ctx, cfg)
	if err != nil {
		return err
	}

	files := make(map[string]bool, len(staged))
	for _, f := range staged {
		files[f] = true
	}

	result, err := validate.NewCompletenessChecker(layout, logger).
		CheckSubset(api, cfg.Validation.CompletenessThreshold, files)
	if err != nil {
		return err
	}
	fmt.Printf("%s Staged files: %.1f%% complete (%d element(s) checked)\n",
		passFailMark(result.Passed), result.CompletenessPercent, len(result.Elements))
	if !result.Passed {
		fmt.Print(validate.RenderReport(result))
		return fmt.Errorf("staged files are under-documented; fix docstrings or commit with --no-verify")
	}
	return nil
}

func printDoctestFailures(result validate.DoctestResult) {
	for _, r := range result.Results {
		if r.Status != "failed" && r.Status != "error" {
			continue
		}
		fmt.Printf("\n✗ %s:%d\n%s\n", r.Example.Origin, r.Example.Line, r.Output)
		logger.Debug("doctest failure",
			zap.String("origin", r.Example.Origin),
			zap.Int("line", r.Example.Line))
	}
}

func passFailMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
