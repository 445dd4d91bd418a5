package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ultrathink/internal/diffing"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

// BuildResult summarizes one documentation build.
type BuildResult struct {
	BuildID      string    `json:"build_id"`
	Version      string    `json:"version"`
	BuiltAt      time.Time `json:"built_at"`
	Pages        []string  `json:"pages"`
	StubsWritten int       `json:"stubs_written"`
	ComparedWith string    `json:"compared_with,omitempty"`
}

// AutodocBuilder assembles the complete documentation set.
type AutodocBuilder struct {
	layout storage.Layout
	stubs  *StubGenerator
	logger *zap.Logger
}

// NewAutodocBuilder wires a builder over the layout.
func NewAutodocBuilder(layout storage.Layout, logger *zap.Logger) *AutodocBuilder {
	return &AutodocBuilder{
		layout: layout,
		stubs:  NewStubGenerator(layout, logger),
		logger: logger,
	}
}

// Build renders the overview, API summary, stubs, optional change report, and
// index for one version of the API.
func (b *AutodocBuilder) Build(api introspect.PackageAPI, structure introspect.PackageStructure, version string, diff *diffing.VersionDiff) (BuildResult, error) {
	result := BuildResult{
		BuildID: uuid.NewString(),
		Version: version,
		BuiltAt: time.Now().UTC(),
	}

	written, err := b.stubs.Generate(api, nil, true)
	if err != nil {
		return result, err
	}
	result.StubsWritten = len(written)

	pages := []struct {
		name    string
		content string
	}{
		{"package_overview.md", b.renderOverview(api, structure, version)},
		{"api_summary.md", b.renderSummary(api)},
		{"build_report.md", b.renderBuildReport(api, result)},
	}
	if diff != nil {
		pages = append(pages, struct {
			name    string
			content string
		}{"change_report.md", b.renderChangeReport(*diff)})
		result.ComparedWith = diff.Info.FromVersion
	}

	for _, page := range pages {
		path := filepath.Join(b.layout.GeneratedDocsDir(), page.name)
		if err := os.WriteFile(path, []byte(page.content), 0o644); err != nil {
			return result, fmt.Errorf("write %s: %w", page.name, err)
		}
		result.Pages = append(result.Pages, path)
	}

	indexPath, err := b.UpdateIndex(api.Package.Name)
	if err != nil {
		return result, err
	}
	result.Pages = append(result.Pages, indexPath)

	b.logger.Info("documentation build complete",
		zap.String("build_id", result.BuildID),
		zap.String("version", version),
		zap.Int("pages", len(result.Pages)),
		zap.Int("stubs", result.StubsWritten))
	return result, nil
}

// UpdateIndex regenerates index.md from whatever currently exists under
// generated_docs.
func (b *AutodocBuilder) UpdateIndex(packageName string) (string, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "# %s documentation index\n\n", packageName)

	topLevel, err := storage.ListByPrefix(b.layout.GeneratedDocsDir(), "")
	if err != nil {
		return "", err
	}
	body.WriteString("## Pages\n\n")
	for _, p := range topLevel {
		name := filepath.Base(p)
		if name == "index.md" || !strings.HasSuffix(name, ".md") {
			continue
		}
		fmt.Fprintf(&body, "- [%s](%s)\n", strings.TrimSuffix(name, ".md"), name)
	}

	refs, err := storage.ListByPrefix(b.layout.APIReferenceDir(), "")
	if err != nil {
		return "", err
	}
	if len(refs) > 0 {
		body.WriteString("\n## API reference\n\n")
		for _, p := range refs {
			name := filepath.Base(p)
			if !strings.HasSuffix(name, ".md") {
				continue
			}
			fmt.Fprintf(&body, "- [%s](api_reference/%s)\n", strings.TrimSuffix(name, ".md"), name)
		}
	}

	path := filepath.Join(b.layout.GeneratedDocsDir(), "index.md")
	if err := os.WriteFile(path, []byte(body.String()), 0o644); err != nil {
		return "", fmt.Errorf("write index: %w", err)
	}
	return path, nil
}

func (b *AutodocBuilder) renderOverview(api introspect.PackageAPI, structure introspect.PackageStructure, version string) string {
	var s strings.Builder
	fmt.Fprintf(&s, "# %s %s\n\n", api.Package.Name, version)
	fmt.Fprintf(&s, "- Modules: %d\n- Elements: %d (%d public)\n- Lines of source: %d\n\n",
		api.Package.ModuleCount, api.Package.ElementCount, api.Package.PublicCount,
		structure.TotalLines)

	s.WriteString("## Modules\n\n")
	for _, name := range sortedModuleNames(api) {
		info := api.Modules[name]
		doc := strings.SplitN(info.Docstring, "\n", 2)[0]
		fmt.Fprintf(&s, "- `%s` — %s\n", name, firstNonEmpty(doc, "(undocumented)"))
	}

	s.WriteString("\n## Dependencies\n\n")
	fmt.Fprintf(&s, "- Standard library: %s\n", joinOrNone(structure.Dependencies.Stdlib))
	fmt.Fprintf(&s, "- Third party: %s\n", joinOrNone(structure.Dependencies.ThirdParty))
	return s.String()
}

func (b *AutodocBuilder) renderSummary(api introspect.PackageAPI) string {
	var s strings.Builder
	fmt.Fprintf(&s, "# %s API summary\n", api.Package.Name)

	byModule := map[string][]introspect.Element{}
	for _, el := range api.PublicElements() {
		byModule[el.Module] = append(byModule[el.Module], el)
	}
	modules := make([]string, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	for _, m := range modules {
		fmt.Fprintf(&s, "\n## %s\n\n", m)
		els := byModule[m]
		sort.Slice(els, func(i, j int) bool { return els[i].QualName < els[j].QualName })
		for _, el := range els {
			sig := el.Signature
			if sig == "" {
				sig = el.Name
			}
			fmt.Fprintf(&s, "- **%s** `%s`\n", el.Kind, sig)
		}
	}
	return s.String()
}

func (b *AutodocBuilder) renderChangeReport(diff diffing.VersionDiff) string {
	var s strings.Builder
	fmt.Fprintf(&s, "# Changes %s → %s\n\n", diff.Info.FromVersion, diff.Info.ToVersion)
	fmt.Fprintf(&s, "Suggested version bump: **%s**\n\n", diff.SuggestedBump)

	if len(diff.Changes) == 0 {
		s.WriteString("No API changes detected.\n")
		return s.String()
	}
	s.WriteString("| Element | Type | Severity | Impact | Detail |\n")
	s.WriteString("|---|---|---|---|---|\n")
	for _, c := range diff.Changes {
		fmt.Fprintf(&s, "| `%s` | %s | %s | %s | %s |\n",
			c.Element, c.Type, c.Severity, c.Impact, c.Detail)
	}

	if len(diff.BreakingChanges) > 0 {
		s.WriteString("\n## Migration notes\n\n")
		for _, c := range diff.BreakingChanges {
			if c.MigrationNote != "" {
				fmt.Fprintf(&s, "- `%s`: %s\n", c.Element, c.MigrationNote)
			}
		}
	}
	return s.String()
}

func (b *AutodocBuilder) renderBuildReport(api introspect.PackageAPI, result BuildResult) string {
	var s strings.Builder
	s.WriteString("# Documentation build report\n\n")
	fmt.Fprintf(&s, "- Build ID: `%s`\n", result.BuildID)
	fmt.Fprintf(&s, "- Version: %s\n", result.Version)
	fmt.Fprintf(&s, "- Built at: %s\n", result.BuiltAt.Format(time.RFC3339))
	fmt.Fprintf(&s, "- Stub pages written: %d\n", result.StubsWritten)
	fmt.Fprintf(&s, "- Public elements: %d\n", api.Package.PublicCount)
	return s.String()
}

func sortedModuleNames(api introspect.PackageAPI) []string {
	names := make([]string, 0, len(api.Modules))
	for name := range api.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
