package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ultrathink/internal/diffing"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

// DeprecationCandidate is an element that looks deprecated in source.
type DeprecationCandidate struct {
	Element string `json:"element"`
	Reason  string `json:"reason"`
}

// DeprecationManager finds deprecation markers and writes migration docs.
type DeprecationManager struct {
	layout  storage.Layout
	tracker *diffing.Tracker
	logger  *zap.Logger
}

// NewDeprecationManager wires a manager. tracker may be nil when only
// candidate analysis is needed.
func NewDeprecationManager(layout storage.Layout, tracker *diffing.Tracker, logger *zap.Logger) *DeprecationManager {
	return &DeprecationManager{layout: layout, tracker: tracker, logger: logger}
}

// FindCandidates scans the API for deprecation markers: decorators named
// *deprecated* and docstrings opening with a deprecation notice.
func (m *DeprecationManager) FindCandidates(api introspect.PackageAPI) []DeprecationCandidate {
	var out []DeprecationCandidate
	for qual, el := range api.Elements {
		if !el.Public {
			continue
		}
		for _, d := range el.Decorators {
			if strings.Contains(strings.ToLower(d), "deprecated") {
				out = append(out, DeprecationCandidate{
					Element: qual,
					Reason:  fmt.Sprintf("decorator @%s", d),
				})
			}
		}
		doc := strings.ToLower(el.Docstring)
		if strings.Contains(doc, "deprecated") {
			out = append(out, DeprecationCandidate{
				Element: qual,
				Reason:  "docstring mentions deprecation",
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element < out[j].Element })
	return dedupeCandidates(out)
}

// Record stores candidates in the tracker as of sinceVersion.
func (m *DeprecationManager) Record(candidates []DeprecationCandidate, sinceVersion string) error {
	if m.tracker == nil {
		return fmt.Errorf("no version tracker attached")
	}
	for _, c := range candidates {
		err := m.tracker.RecordDeprecation(diffing.Deprecation{
			Element:      c.Element,
			SinceVersion: sinceVersion,
			Note:         c.Reason,
		})
		if err != nil {
			return err
		}
	}
	m.logger.Info("recorded deprecations",
		zap.Int("count", len(candidates)),
		zap.String("since", sinceVersion))
	return nil
}

// WriteMigrationGuide renders deprecations.md from the tracker's records.
func (m *DeprecationManager) WriteMigrationGuide() (string, error) {
	if m.tracker == nil {
		return "", fmt.Errorf("no version tracker attached")
	}
	deps, err := m.tracker.ListDeprecations()
	if err != nil {
		return "", err
	}

	var s strings.Builder
	s.WriteString("# Deprecations and migration guide\n\n")
	if len(deps) == 0 {
		s.WriteString("No deprecated API elements are currently tracked.\n")
	} else {
		s.WriteString("| Element | Since | Removal | Replacement | Note |\n")
		s.WriteString("|---|---|---|---|---|\n")
		for _, d := range deps {
			fmt.Fprintf(&s, "| `%s` | %s | %s | %s | %s |\n",
				d.Element, d.SinceVersion,
				firstNonEmpty(d.RemovalIn, "TBD"),
				firstNonEmpty(d.Replacement, "—"), d.Note)
		}
	}

	path := filepath.Join(m.layout.GeneratedDocsDir(), "deprecations.md")
	if err := os.WriteFile(path, []byte(s.String()), 0o644); err != nil {
		return "", fmt.Errorf("write migration guide: %w", err)
	}
	return path, nil
}

func dedupeCandidates(in []DeprecationCandidate) []DeprecationCandidate {
	seen := map[string]bool{}
	var out []DeprecationCandidate
	for _, c := range in {
		if seen[c.Element] {
			continue
		}
		seen[c.Element] = true
		out = append(out, c)
	}
	return out
}
