package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ultrathink/internal/ci"
	"ultrathink/internal/config"
	"ultrathink/internal/generate"
)

var (
	setupPackage   string
	setupGitHub    bool
	setupPreCommit bool
)

// setupCmd initializes ultrathink in a project
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize ultrathink in this project",
	Long: `Creates the docs/ultrathink directory tree, writes the default
[tool.ultrathink] configuration into the project file, and installs the
default stub templates.

Example:
  ultrathink setup --package mypackage --github --pre-commit`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupPackage, "package", "", "package name to configure")
	setupCmd.Flags().BoolVar(&setupGitHub, "github", false, "install GitHub Actions workflows")
	setupCmd.Flags().BoolVar(&setupPreCommit, "pre-commit", false, "install the git pre-commit hook")
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrNotConfigured):
		if setupPackage == "" {
			return fmt.Errorf("--package is required on first setup")
		}
		cfg = config.Default(setupPackage)
		if err := config.WriteInto(path, cfg); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote [tool.ultrathink] to %s\n", path)
	case err != nil:
		return err
	default:
		if setupPackage != "" && setupPackage != cfg.PackageName {
			cfg = config.Default(setupPackage)
			if err := config.WriteInto(path, cfg); err != nil {
				return err
			}
			fmt.Printf("✓ Reconfigured [tool.ultrathink] for package %s\n", setupPackage)
		} else {
			fmt.Printf("✓ Existing configuration found for package %s\n", cfg.PackageName)
		}
	}

	layout := projectLayout()
	if err := layout.Ensure(); err != nil {
		return err
	}
	fmt.Printf("✓ Storage layout ready under %s\n", layout.StorageDir())

	if err := generate.NewStubGenerator(layout, logger).EnsureTemplates(); err != nil {
		return err
	}
	fmt.Printf("✓ Stub templates installed in %s\n", layout.TemplateDir())

	if setupGitHub {
		written, err := ci.NewWorkflowGenerator(projectRoot, logger).Install(cfg.PackageName)
		if err != nil {
			return err
		}
		for _, f := range written {
			fmt.Printf("✓ Wrote workflow %s\n", f)
		}
	}

	if setupPreCommit {
		pc := ci.NewPreCommit(projectRoot, logger)
		hookPath, err := pc.InstallHook()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Installed pre-commit hook at %s\n", hookPath)
		cfgPath, err := pc.WriteConfig()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s\n", cfgPath)
	}

	logger.Info("setup complete", zap.String("package", cfg.PackageName))
	fmt.Println("\nSetup complete. Next: ultrathink introspect")
	return nil
}
