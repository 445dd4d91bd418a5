// ultrathink is a documentation automation CLI for Python packages: it
// extracts the public API statically, snapshots and diffs it across
// versions, generates markdown documentation, validates completeness and
// doctests, and gates CI on the results.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ultrathink/internal/config"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

var (
	// Global flags
	verbose     bool
	projectRoot string
	configPath  string
	timeout     time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ultrathink",
	Short: "ultrathink - documentation automation for Python packages",
	Long: `ultrathink keeps a Python package's documentation honest.

It extracts the public API from source (no interpreter needed), snapshots it
per version, classifies changes for semver impact, generates markdown stubs,
validates completeness and doctests, and gates pre-commit and GitHub Actions
on the results.

Configuration lives in the [tool.ultrathink] table of pyproject.toml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if projectRoot == "" {
			projectRoot, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pyproject.toml", "TOML project file with the [tool.ultrathink] table")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "timeout for long operations")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(introspectCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(generateStubsCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkCompletenessCmd)
	rootCmd.AddCommand(validateDoctestsCmd)
	rootCmd.AddCommand(checkStagedFilesCmd)
	rootCmd.AddCommand(generatePRReportCmd)
	rootCmd.AddCommand(checkNewAPIsCmd)
	rootCmd.AddCommand(updateIndexCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// opContext bounds an operation by the global timeout.
func opContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, timeout)
}

// resolvedConfigPath anchors --config at the project root.
func resolvedConfigPath() string {
	if filepath.IsAbs(configPath) {
		return configPath
	}
	return filepath.Join(projectRoot, configPath)
}

// loadConfig reads the project configuration, overlaying the --package flag
// when set. A missing [tool.ultrathink] table is fine as long as the package
// name is known from the flag.
func loadConfig(packageOverride string) (config.Config, error) {
	cfg, err := config.Load(resolvedConfigPath())
	if errors.Is(err, config.ErrNotConfigured) {
		if packageOverride == "" {
			return config.Config{}, fmt.Errorf(
				"ultrathink is not configured in %s; run 'ultrathink setup --package NAME' or pass --package",
				resolvedConfigPath())
		}
		return config.Default(packageOverride), nil
	}
	if err != nil {
		return config.Config{}, err
	}
	if packageOverride != "" && packageOverride != cfg.PackageName {
		cfg.PackageName = packageOverride
		cfg.SourceDirectory = filepath.ToSlash(filepath.Join("src", packageOverride))
	}
	return cfg, nil
}

func projectLayout() storage.Layout {
	return storage.NewLayout(projectRoot)
}

// extractAPI runs the full static extraction for the configured package.
func extractAPI(ctx context.Context, cfg config.Config) (introspect.PackageAPI, error) {
	ex := introspect.NewExtractor(projectRoot, logger)
	return ex.Extract(ctx, cfg.PackageName, cfg.SourceDirectory)
}
