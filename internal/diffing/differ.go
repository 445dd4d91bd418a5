package diffing

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

// Snapshot is one persisted API state.
type Snapshot struct {
	Version         string                `json:"version"`
	Timestamp       time.Time             `json:"timestamp"`
	API             introspect.PackageAPI `json:"api"`
	SignatureHashes map[string]string     `json:"signature_hashes"`
	Metadata        map[string]string     `json:"metadata,omitempty"`
}

// DocChange records a docstring edit between versions.
type DocChange struct {
	Element string `json:"element"`
	Diff    string `json:"diff"`
}

// ComparisonInfo identifies the two sides of a diff.
type ComparisonInfo struct {
	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	ComparedAt  time.Time `json:"compared_at"`
}

// VersionDiff is the full comparison of two snapshots.
type VersionDiff struct {
	Info             ComparisonInfo                 `json:"comparison_info"`
	SignatureChanges introspect.SignatureComparison `json:"signature_changes"`
	Changes          []Change                       `json:"changes"`
	DocChanges       []DocChange                    `json:"documentation_changes,omitempty"`
	BreakingChanges  []Change                       `json:"breaking_changes"`
	SuggestedBump    string                         `json:"suggested_bump"`
}

// Differ persists snapshots and compares them.
type Differ struct {
	layout storage.Layout
	hasher introspect.Hasher
	logger *zap.Logger
}

// NewDiffer builds a differ over the given layout.
func NewDiffer(layout storage.Layout, logger *zap.Logger) *Differ {
	return &Differ{
		layout: layout,
		hasher: introspect.NewHasher(introspect.SensitivityModerate),
		logger: logger,
	}
}

// BuildSnapshot assembles a snapshot in memory without persisting it.
func (d *Differ) BuildSnapshot(api introspect.PackageAPI, version string, metadata map[string]string) (Snapshot, error) {
	hashes, err := d.hasher.HashAll(api)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Version:         version,
		Timestamp:       time.Now().UTC(),
		API:             api,
		SignatureHashes: hashes,
		Metadata:        metadata,
	}, nil
}

// SaveSnapshot writes a snapshot file for version and returns its path. The
// name embeds the date, so multiple snapshots of one version coexist.
func (d *Differ) SaveSnapshot(api introspect.PackageAPI, version string, metadata map[string]string) (string, error) {
	snap, err := d.BuildSnapshot(api, version, metadata)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("api_snapshot_%s_%s.json", version, snap.Timestamp.Format("2006-01-02"))
	path := filepath.Join(d.layout.SnapshotDir(), name)
	if err := storage.WriteJSON(path, snap); err != nil {
		return "", err
	}
	d.logger.Info("saved API snapshot",
		zap.String("version", version),
		zap.Int("elements", len(api.Elements)),
		zap.String("path", path))
	return path, nil
}

// LoadSnapshot returns the most recent snapshot of version.
func (d *Differ) LoadSnapshot(version string) (Snapshot, error) {
	prefix := fmt.Sprintf("api_snapshot_%s_", version)
	paths, err := storage.ListByPrefix(d.layout.SnapshotDir(), prefix)
	if err != nil {
		return Snapshot{}, err
	}
	if len(paths) == 0 {
		return Snapshot{}, fmt.Errorf("no snapshot for version %s", version)
	}
	var snap Snapshot
	if err := storage.ReadJSON(paths[len(paths)-1], &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Compare diffs two stored versions.
func (d *Differ) Compare(fromVersion, toVersion string) (VersionDiff, error) {
	oldSnap, err := d.LoadSnapshot(fromVersion)
	if err != nil {
		return VersionDiff{}, err
	}
	newSnap, err := d.LoadSnapshot(toVersion)
	if err != nil {
		return VersionDiff{}, err
	}
	return d.CompareSnapshots(oldSnap, newSnap), nil
}

// CompareSnapshots diffs two in-memory snapshots.
func (d *Differ) CompareSnapshots(oldSnap, newSnap Snapshot) VersionDiff {
	sigCmp := introspect.CompareSignatures(oldSnap.SignatureHashes, newSnap.SignatureHashes)

	var changes []Change
	for _, name := range sigCmp.Removed {
		el := oldSnap.API.Elements[name]
		changes = append(changes, Classify(name, &el, nil)...)
	}
	for _, name := range sigCmp.Added {
		el := newSnap.API.Elements[name]
		changes = append(changes, Classify(name, nil, &el)...)
	}
	for _, name := range sigCmp.Modified {
		oldEl := oldSnap.API.Elements[name]
		newEl := newSnap.API.Elements[name]
		changes = append(changes, Classify(name, &oldEl, &newEl)...)
	}
	SortChanges(changes)

	var docChanges []DocChange
	for name, newEl := range newSnap.API.Elements {
		oldEl, ok := oldSnap.API.Elements[name]
		if !ok || oldEl.Docstring == newEl.Docstring {
			continue
		}
		if hunks := DiffText(oldEl.Docstring, newEl.Docstring); len(hunks) > 0 {
			docChanges = append(docChanges, DocChange{
				Element: name,
				Diff:    RenderUnified(hunks),
			})
		}
	}

	var breaking []Change
	for _, c := range changes {
		if c.Impact == ImpactBreaking {
			breaking = append(breaking, c)
		}
	}

	return VersionDiff{
		Info: ComparisonInfo{
			FromVersion: oldSnap.Version,
			ToVersion:   newSnap.Version,
			ComparedAt:  time.Now().UTC(),
		},
		SignatureChanges: sigCmp,
		Changes:          changes,
		DocChanges:       docChanges,
		BreakingChanges:  breaking,
		SuggestedBump:    SuggestVersionBump(changes),
	}
}

// SaveDiff persists a comparison under storage/diffs.
func (d *Differ) SaveDiff(diff VersionDiff) (string, error) {
	name := fmt.Sprintf("diff_%s_to_%s_%d.json",
		diff.Info.FromVersion, diff.Info.ToVersion, diff.Info.ComparedAt.Unix())
	path := filepath.Join(d.layout.DiffDir(), name)
	if err := storage.WriteJSON(path, diff); err != nil {
		return "", err
	}
	return path, nil
}

// CleanupSnapshots removes snapshot files older than retention, never
// touching the current version's files.
func (d *Differ) CleanupSnapshots(retention time.Duration, currentVersion string) ([]string, error) {
	keep := map[string]bool{}
	if currentVersion != "" {
		prefix := fmt.Sprintf("api_snapshot_%s_", currentVersion)
		paths, err := storage.ListByPrefix(d.layout.SnapshotDir(), prefix)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			keep[p] = true
		}
	}
	removed, err := storage.PruneOlderThan(
		d.layout.SnapshotDir(), "api_snapshot_", time.Now().Add(-retention), keep)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		d.logger.Info("pruned old snapshots", zap.Int("count", len(removed)))
	}
	return removed, nil
}
