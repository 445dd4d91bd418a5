package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ultrathink/internal/diffing"
	"ultrathink/internal/generate"
	"ultrathink/internal/storage"
	"ultrathink/internal/validate"
)

var (
	introspectPackage string
	introspectOutput  string

	snapshotPackage   string
	snapshotVersion   string
	snapshotRetention time.Duration

	stubsPackage  string
	stubsElements []string
	stubsForce    bool
)

// introspectCmd extracts the complete API
var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Extract the package's public API from source",
	Long: `Parses every Python file under the configured source directory and
assembles the complete API: classes, functions, methods, variables,
signatures, docstrings, and type hints.

With --output the result is written as JSON; otherwise a summary is printed.`,
	RunE: runIntrospect,
}

// snapshotCmd persists an API snapshot and registers the version
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Persist an API snapshot and register the version",
	Long: `Extracts the current API, saves it under storage/api_snapshots,
captures a help-text snapshot, and registers the version in the tracking
database. Changes against the previous current version are classified and
recorded.

Without --version the next patch version after the tracked current one is
used.`,
	RunE: runSnapshot,
}

// generateStubsCmd renders markdown stubs
var generateStubsCmd = &cobra.Command{
	Use:   "generate-stubs",
	Short: "Generate markdown documentation stubs",
	Long: `Renders one markdown page per public API element from the templates
under docs/ultrathink/config/templates. Existing pages are kept unless
--force is given.

Example:
  ultrathink generate-stubs --elements Client fetch`,
	RunE: runGenerateStubs,
}

func init() {
	introspectCmd.Flags().StringVar(&introspectPackage, "package", "", "package name (overrides config)")
	introspectCmd.Flags().StringVar(&introspectOutput, "output", "", "write the API as JSON to this path")

	snapshotCmd.Flags().StringVar(&snapshotPackage, "package", "", "package name (overrides config)")
	snapshotCmd.Flags().StringVar(&snapshotVersion, "version", "", "version to register (default: next patch)")
	snapshotCmd.Flags().DurationVar(&snapshotRetention, "retention", 0, "prune snapshots older than this (0 keeps all)")

	generateStubsCmd.Flags().StringVar(&stubsPackage, "package", "", "package name (overrides config)")
	generateStubsCmd.Flags().StringSliceVar(&stubsElements, "elements", nil, "only these elements (qualified or short names)")
	generateStubsCmd.Flags().BoolVar(&stubsForce, "force", false, "regenerate existing pages")
}

func runIntrospect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(introspectPackage)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()

	api, err := extractAPI(ctx, cfg)
	if err != nil {
		return fmt.Errorf("introspection failed: %w", err)
	}

	if introspectOutput != "" {
		if err := storage.WriteJSON(introspectOutput, api); err != nil {
			return err
		}
		fmt.Printf("✓ API written to %s\n", introspectOutput)
		return nil
	}

	fmt.Printf("Package %s\n", api.Package.Name)
	fmt.Printf("  Modules:  %d\n", api.Package.ModuleCount)
	fmt.Printf("  Elements: %d (%d public)\n", api.Package.ElementCount, api.Package.PublicCount)
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(snapshotPackage)
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

	tracker, err := diffing.NewTracker(layout.TrackerDB(), logger)
	if err != nil {
		return err
	}
	defer tracker.Close()

	version := snapshotVersion
	current, hasCurrent, err := tracker.CurrentVersion()
	if err != nil {
		return err
	}
	if version == "" {
		if hasCurrent {
			version, err = diffing.NextVersion(current.VersionString, "patch")
			if err != nil {
				return err
			}
		} else {
			version = "0.1.0"
		}
	}

	differ := diffing.NewDiffer(layout, logger)
	path, err := differ.SaveSnapshot(api, version, map[string]string{
		"package": cfg.PackageName,
	})
	if err != nil {
		return err
	}
	fmt.Printf("✓ API snapshot saved to %s\n", path)

	// Classify against the previous current version when one exists.
	var changes []diffing.Change
	if hasCurrent {
		if prev, err := differ.LoadSnapshot(current.VersionString); err == nil {
			fresh, err := differ.BuildSnapshot(api, version, nil)
			if err != nil {
				return err
			}
			diff := differ.CompareSnapshots(prev, fresh)
			changes = diff.Changes
			fmt.Printf("✓ %d change(s) vs %s, suggested bump: %s\n",
				len(changes), current.VersionString, diff.SuggestedBump)
		}
	}

	if _, err := tracker.RegisterVersion(version, path, "", changes); err != nil {
		return err
	}
	fmt.Printf("✓ Version %s registered as current\n", version)

	// Deprecations visible in this snapshot are recorded alongside.
	depMgr := generate.NewDeprecationManager(layout, tracker, logger)
	if candidates := depMgr.FindCandidates(api); len(candidates) > 0 {
		if err := depMgr.Record(candidates, version); err != nil {
			return err
		}
		fmt.Printf("✓ %d deprecation(s) recorded\n", len(candidates))
	}

	if snapshotRetention > 0 {
		removed, err := differ.CleanupSnapshots(snapshotRetention, version)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			fmt.Printf("✓ Pruned %d old snapshot(s)\n", len(removed))
		}
	}

	helpSnap := validate.NewHelpSnapshotter(layout, logger)
	if _, err := helpSnap.Save(helpSnap.Capture(api, version)); err != nil {
		return err
	}
	fmt.Println("✓ Help snapshot captured")

	stats, err := tracker.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d version(s) tracked, %d change(s), %d deprecation(s)\n",
		stats.TotalVersions, stats.TotalChanges, stats.Deprecations)

	logger.Info("snapshot complete",
		zap.String("version", version),
		zap.Int("changes", len(changes)))
	return nil
}

func runGenerateStubs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(stubsPackage)
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

	written, err := generate.NewStubGenerator(layout, logger).Generate(api, stubsElements, stubsForce)
	if err != nil {
		return err
	}
	if len(written) == 0 {
		fmt.Println("✓ All stubs up to date")
		return nil
	}
	for _, p := range written {
		fmt.Printf("✓ %s\n", p)
	}
	fmt.Printf("\n%d stub(s) written\n", len(written))
	return nil
}
