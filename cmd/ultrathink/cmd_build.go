package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ultrathink/internal/diffing"
	"ultrathink/internal/generate"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
	"ultrathink/internal/validate"
)

var (
	buildPackage     string
	buildVersion     string
	buildCompareWith string

	diffPackage     string
	diffFromVersion string
	diffToVersion   string

	newAPIsBaseVersion string
)

// buildCmd assembles the complete documentation set
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the full documentation set",
	Long: `Extracts the current API and renders the complete documentation:
per-element stubs, the package overview, the API summary, a build report,
and the documentation index.

With --compare-with a change report against that stored version is included.`,
	RunE: runBuild,
}

// diffCmd compares two stored snapshots
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two stored API snapshots",
	Long: `Compares the snapshots of two tracked versions, classifies every change
for semver impact, and persists the comparison under storage/diffs.

Without --to-version the current source tree is extracted and compared
against --from-version.`,
	RunE: runDiff,
}

// checkNewAPIsCmd lists public elements added since a base version
var checkNewAPIsCmd = &cobra.Command{
	Use:   "check-new-apis",
	Short: "List public API elements added since a base version",
	RunE:  runCheckNewAPIs,
}

// updateIndexCmd refreshes the documentation index
var updateIndexCmd = &cobra.Command{
	Use:   "update-index",
	Short: "Regenerate the documentation index",
	RunE:  runUpdateIndex,
}

func init() {
	buildCmd.Flags().StringVar(&buildPackage, "package", "", "package name (overrides config)")
	buildCmd.Flags().StringVar(&buildVersion, "version", "", "version label for the build (default: tracked current)")
	buildCmd.Flags().StringVar(&buildCompareWith, "compare-with", "", "stored version to diff against")

	diffCmd.Flags().StringVar(&diffPackage, "package", "", "package name (overrides config)")
	diffCmd.Flags().StringVar(&diffFromVersion, "from-version", "", "older version (required)")
	diffCmd.Flags().StringVar(&diffToVersion, "to-version", "", "newer version (default: current source tree)")
	_ = diffCmd.MarkFlagRequired("from-version")

	checkNewAPIsCmd.Flags().StringVar(&newAPIsBaseVersion, "base-version", "", "version to compare against (default: tracked current)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(buildPackage)
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
	structure := introspect.AnalyzeStructure(projectRoot, api)

	version := buildVersion
	if version == "" {
		version, err = trackedCurrentVersion(layout)
		if err != nil {
			return err
		}
		if version == "" {
			version = "unreleased"
		}
	}

	differ := diffing.NewDiffer(layout, logger)
	var diff *diffing.VersionDiff
	if buildCompareWith != "" {
		base, err := differ.LoadSnapshot(buildCompareWith)
		if err != nil {
			return err
		}
		fresh, err := differ.BuildSnapshot(api, version, nil)
		if err != nil {
			return err
		}
		d := differ.CompareSnapshots(base, fresh)
		diff = &d
	}

	result, err := generate.NewAutodocBuilder(layout, logger).Build(api, structure, version, diff)
	if err != nil {
		return err
	}

	tracker, err := diffing.NewTracker(layout.TrackerDB(), logger)
	if err != nil {
		return err
	}
	defer tracker.Close()
	guidePath, err := generate.NewDeprecationManager(layout, tracker, logger).WriteMigrationGuide()
	if err != nil {
		return err
	}
	fmt.Printf("✓ Migration guide written to %s\n", guidePath)

	fmt.Printf("✓ Build %s complete (version %s)\n", result.BuildID, result.Version)
	fmt.Printf("  Stubs written: %d\n", result.StubsWritten)
	for _, p := range result.Pages {
		fmt.Printf("  ✓ %s\n", p)
	}
	logger.Info("documentation built",
		zap.String("build_id", result.BuildID),
		zap.Int("pages", len(result.Pages)))
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(diffPackage)
	if err != nil {
		return err
	}
	layout := projectLayout()
	if err := layout.Ensure(); err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()

	differ := diffing.NewDiffer(layout, logger)
	oldSnap, err := differ.LoadSnapshot(diffFromVersion)
	if err != nil {
		return err
	}

	var newSnap diffing.Snapshot
	if diffToVersion != "" {
		newSnap, err = differ.LoadSnapshot(diffToVersion)
		if err != nil {
			return err
		}
	} else {
		api, err := extractAPI(ctx, cfg)
		if err != nil {
			return err
		}
		newSnap, err = differ.BuildSnapshot(api, "worktree", nil)
		if err != nil {
			return err
		}
	}

	diff := differ.CompareSnapshots(oldSnap, newSnap)
	path, err := differ.SaveDiff(diff)
	if err != nil {
		return err
	}

	fmt.Printf("API diff %s -> %s\n\n", diff.Info.FromVersion, diff.Info.ToVersion)
	fmt.Printf("  Added:     %d\n", len(diff.SignatureChanges.Added))
	fmt.Printf("  Removed:   %d\n", len(diff.SignatureChanges.Removed))
	fmt.Printf("  Modified:  %d\n", len(diff.SignatureChanges.Modified))
	fmt.Printf("  Breaking:  %d\n", len(diff.BreakingChanges))
	fmt.Printf("  Suggested bump: %s\n", diff.SuggestedBump)

	for _, c := range diff.Changes {
		fmt.Printf("\n%s [%s/%s] %s\n    %s\n",
			changeMark(c), c.Severity, c.Impact, c.Element, c.Detail)
		if c.MigrationNote != "" {
			fmt.Printf("    migration: %s\n", c.MigrationNote)
		}
	}

	if diffToVersion != "" {
		reportHelpChanges(layout, diffFromVersion, diffToVersion)
	}

	fmt.Printf("\n✓ Diff saved to %s\n", path)
	return nil
}

// reportHelpChanges compares stored help snapshots when both versions have
// one; missing snapshots are not an error.
func reportHelpChanges(layout storage.Layout, fromVersion, toVersion string) {
	hs := validate.NewHelpSnapshotter(layout, logger)
	oldHelp, err := hs.Load(fromVersion)
	if err != nil {
		return
	}
	newHelp, err := hs.Load(toVersion)
	if err != nil {
		return
	}
	cmp := hs.Compare(oldHelp, newHelp)
	fmt.Printf("\nHelp text: %d added, %d removed, %d modified\n",
		len(cmp.Added), len(cmp.Removed), len(cmp.Modified))
	if cmp.HasBreakingChanges() {
		fmt.Println("✗ Help text has breaking changes")
	}
}

func runCheckNewAPIs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	layout := projectLayout()
	if err := layout.Ensure(); err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()

	base := newAPIsBaseVersion
	if base == "" {
		base, err = trackedCurrentVersion(layout)
		if err != nil {
			return err
		}
		if base == "" {
			return fmt.Errorf("no tracked version to compare against; run 'ultrathink snapshot' first or pass --base-version")
		}
	}

	differ := diffing.NewDiffer(layout, logger)
	baseSnap, err := differ.LoadSnapshot(base)
	if err != nil {
		return err
	}

	api, err := extractAPI(ctx, cfg)
	if err != nil {
		return err
	}
	fresh, err := differ.BuildSnapshot(api, "worktree", nil)
	if err != nil {
		return err
	}

	diff := differ.CompareSnapshots(baseSnap, fresh)
	if len(diff.SignatureChanges.Added) == 0 {
		fmt.Printf("✓ No new public APIs since %s\n", base)
		return nil
	}

	undocumented := 0
	fmt.Printf("New public APIs since %s:\n\n", base)
	for _, name := range diff.SignatureChanges.Added {
		el, ok := api.Elements[name]
		if !ok || !el.Public {
			continue
		}
		documented := len(strings.TrimSpace(el.Docstring)) >= 20
		if !documented {
			undocumented++
		}
		fmt.Printf("%s %s (%s)\n", passFailMark(documented), name, el.Kind)
	}

	if undocumented > 0 {
		return fmt.Errorf("%d new API(s) lack documentation", undocumented)
	}
	fmt.Println("\n✓ All new APIs are documented")
	return nil
}

func runUpdateIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	layout := projectLayout()
	if err := layout.Ensure(); err != nil {
		return err
	}

	path, err := generate.NewAutodocBuilder(layout, logger).UpdateIndex(cfg.PackageName)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Index written to %s\n", path)
	return nil
}

// trackedCurrentVersion reads the current version from the tracking database,
// returning "" when nothing is tracked yet.
func trackedCurrentVersion(layout storage.Layout) (string, error) {
	tracker, err := diffing.NewTracker(layout.TrackerDB(), logger)
	if err != nil {
		return "", err
	}
	defer tracker.Close()

	current, ok, err := tracker.CurrentVersion()
	if err != nil || !ok {
		return "", err
	}
	return current.VersionString, nil
}

func changeMark(c diffing.Change) string {
	if c.Impact == diffing.ImpactBreaking {
		return "✗"
	}
	return "•"
}
