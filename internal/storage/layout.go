// Package storage owns the docs/ultrathink on-disk tree and the JSON
// artifacts the other subsystems persist into it.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves every ultrathink path from the project root.
type Layout struct {
	Root string
}

// NewLayout anchors a layout at the project root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) base() string { return filepath.Join(l.Root, "docs", "ultrathink") }

// ConfigDir holds templates and gating configuration.
func (l Layout) ConfigDir() string { return filepath.Join(l.base(), "config") }

// TemplateDir holds the markdown stub templates.
func (l Layout) TemplateDir() string { return filepath.Join(l.ConfigDir(), "templates") }

// StorageDir is the parent of all generated artifacts.
func (l Layout) StorageDir() string { return filepath.Join(l.base(), "storage") }

// SnapshotDir holds versioned API snapshots.
func (l Layout) SnapshotDir() string { return filepath.Join(l.StorageDir(), "api_snapshots") }

// GeneratedDocsDir holds built documentation.
func (l Layout) GeneratedDocsDir() string { return filepath.Join(l.StorageDir(), "generated_docs") }

// APIReferenceDir holds per-element stub pages.
func (l Layout) APIReferenceDir() string {
	return filepath.Join(l.GeneratedDocsDir(), "api_reference")
}

// ValidationCacheDir holds completeness and doctest results.
func (l Layout) ValidationCacheDir() string {
	return filepath.Join(l.StorageDir(), "validation_cache")
}

// HelpSnapshotDir holds normalized help-text snapshots.
func (l Layout) HelpSnapshotDir() string { return filepath.Join(l.StorageDir(), "help_snapshots") }

// DiffDir holds saved version comparisons.
func (l Layout) DiffDir() string { return filepath.Join(l.StorageDir(), "diffs") }

// OverrideDir holds gate override audit records.
func (l Layout) OverrideDir() string { return filepath.Join(l.StorageDir(), "overrides") }

// TrackerDB is the SQLite version-tracking database.
func (l Layout) TrackerDB() string {
	return filepath.Join(l.StorageDir(), "version_tracking.db")
}

// Ensure creates the full directory tree.
func (l Layout) Ensure() error {
	dirs := []string{
		l.ConfigDir(),
		l.TemplateDir(),
		l.SnapshotDir(),
		l.GeneratedDocsDir(),
		l.APIReferenceDir(),
		l.ValidationCacheDir(),
		l.HelpSnapshotDir(),
		l.DiffDir(),
		l.OverrideDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists reports whether the layout has been set up.
func (l Layout) Exists() bool {
	info, err := os.Stat(l.StorageDir())
	return err == nil && info.IsDir()
}
