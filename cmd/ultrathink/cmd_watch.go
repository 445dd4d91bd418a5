package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ultrathink/internal/validate"
	"ultrathink/internal/watch"
)

var watchPackage string

// watchCmd re-validates on source changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the source tree and re-check completeness on change",
	Long: `Watches the configured source directory and re-runs the completeness
check whenever Python files change. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchPackage, "package", "", "package name (overrides config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(watchPackage)
	if err != nil {
		return err
	}
	layout := projectLayout()
	if err := layout.Ensure(); err != nil {
		return err
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sourceDir := filepath.Join(projectRoot, cfg.SourceDirectory)
	checker := validate.NewCompletenessChecker(layout, logger)

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", sourceDir)
	err = watch.New(sourceDir, logger).Run(ctx, func(hctx context.Context, changed []string) {
		fmt.Printf("\n%d file(s) changed\n", len(changed))
		api, err := extractAPI(hctx, cfg)
		if err != nil {
			logger.Error("re-extraction failed", zap.Error(err))
			fmt.Printf("✗ %v\n", err)
			return
		}
		result, err := checker.Check(api, cfg.Validation.CompletenessThreshold)
		if err != nil {
			logger.Error("completeness check failed", zap.Error(err))
			fmt.Printf("✗ %v\n", err)
			return
		}
		fmt.Printf("%s Completeness: %.1f%%\n", passFailMark(result.Passed), result.CompletenessPercent)
	})
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nStopped")
		return nil
	}
	return err
}
