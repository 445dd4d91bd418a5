package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ultrathink/internal/diffing"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

// HelpEntry is the normalized help text of one element.
type HelpEntry struct {
	Text string `json:"text"`
	Hash string `json:"hash"`
}

// HelpSnapshot captures the rendered help of every public element.
type HelpSnapshot struct {
	Package   string               `json:"package"`
	Version   string               `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	Entries   map[string]HelpEntry `json:"entries"`
}

// ModifiedHelp is one changed entry between snapshots.
type ModifiedHelp struct {
	Element string `json:"element"`
	Diff    string `json:"diff"`
}

// HelpComparison reports snapshot differences. Removals and modifications
// count as breaking for gating purposes.
type HelpComparison struct {
	Added    []string       `json:"added"`
	Removed  []string       `json:"removed"`
	Modified []ModifiedHelp `json:"modified"`
}

// HasBreakingChanges reports whether any entry disappeared or changed.
func (c HelpComparison) HasBreakingChanges() bool {
	return len(c.Removed) > 0 || len(c.Modified) > 0
}

// HelpSnapshotter renders, stores, and compares help snapshots.
type HelpSnapshotter struct {
	layout storage.Layout
	logger *zap.Logger
}

// NewHelpSnapshotter wires a snapshotter over the layout.
func NewHelpSnapshotter(layout storage.Layout, logger *zap.Logger) *HelpSnapshotter {
	return &HelpSnapshotter{layout: layout, logger: logger}
}

// Capture renders help text for every public element.
func (h *HelpSnapshotter) Capture(api introspect.PackageAPI, version string) HelpSnapshot {
	snap := HelpSnapshot{
		Package:   api.Package.Name,
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Entries:   map[string]HelpEntry{},
	}
	for qual, el := range api.PublicElements() {
		text := NormalizeHelp(RenderHelp(el))
		sum := sha256.Sum256([]byte(text))
		snap.Entries[qual] = HelpEntry{Text: text, Hash: hex.EncodeToString(sum[:])}
	}
	return snap
}

// Save writes the snapshot under help_snapshots.
func (h *HelpSnapshotter) Save(snap HelpSnapshot) (string, error) {
	name := fmt.Sprintf("help_snapshot_%s_%s.json",
		snap.Version, snap.CreatedAt.Format("2006-01-02"))
	path := filepath.Join(h.layout.HelpSnapshotDir(), name)
	if err := storage.WriteJSON(path, snap); err != nil {
		return "", err
	}
	h.logger.Info("saved help snapshot",
		zap.String("version", snap.Version),
		zap.Int("entries", len(snap.Entries)))
	return path, nil
}

// Load returns the newest help snapshot for version.
func (h *HelpSnapshotter) Load(version string) (HelpSnapshot, error) {
	prefix := fmt.Sprintf("help_snapshot_%s_", version)
	paths, err := storage.ListByPrefix(h.layout.HelpSnapshotDir(), prefix)
	if err != nil {
		return HelpSnapshot{}, err
	}
	if len(paths) == 0 {
		return HelpSnapshot{}, fmt.Errorf("no help snapshot for version %s", version)
	}
	var snap HelpSnapshot
	if err := storage.ReadJSON(paths[len(paths)-1], &snap); err != nil {
		return HelpSnapshot{}, err
	}
	return snap, nil
}

// Compare diffs two snapshots entry by entry.
func (h *HelpSnapshotter) Compare(old, new HelpSnapshot) HelpComparison {
	var cmp HelpComparison
	for qual, oldEntry := range old.Entries {
		newEntry, ok := new.Entries[qual]
		switch {
		case !ok:
			cmp.Removed = append(cmp.Removed, qual)
		case oldEntry.Hash != newEntry.Hash:
			hunks := diffing.DiffText(oldEntry.Text, newEntry.Text)
			cmp.Modified = append(cmp.Modified, ModifiedHelp{
				Element: qual,
				Diff:    diffing.RenderUnified(hunks),
			})
		}
	}
	for qual := range new.Entries {
		if _, ok := old.Entries[qual]; !ok {
			cmp.Added = append(cmp.Added, qual)
		}
	}
	sort.Strings(cmp.Added)
	sort.Strings(cmp.Removed)
	sort.Slice(cmp.Modified, func(i, j int) bool {
		return cmp.Modified[i].Element < cmp.Modified[j].Element
	})
	return cmp
}

// RenderHelp produces pydoc-style help text from the extracted element.
func RenderHelp(el introspect.Element) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Help on %s %s in module %s:\n\n", el.Kind, el.Name, el.Module)
	if el.Signature != "" {
		s.WriteString(el.Signature)
		s.WriteByte('\n')
	}
	if el.Docstring != "" {
		for _, line := range strings.Split(el.Docstring, "\n") {
			s.WriteString("    " + line + "\n")
		}
	}
	return s.String()
}

var (
	addressRe  = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	absPathRe  = regexp.MustCompile(`(/[\w./-]+)+\.py`)
	trailingWS = regexp.MustCompile(`[ \t]+\n`)
)

// NormalizeHelp strips volatile detail (memory addresses, absolute paths,
// trailing whitespace) so hashes stay stable across machines.
func NormalizeHelp(text string) string {
	text = addressRe.ReplaceAllString(text, "0x...")
	text = absPathRe.ReplaceAllString(text, "<path>")
	text = trailingWS.ReplaceAllString(text, "\n")
	return strings.TrimRight(text, "\n") + "\n"
}
