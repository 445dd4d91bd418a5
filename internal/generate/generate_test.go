package generate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ultrathink/internal/diffing"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

func testAPI() introspect.PackageAPI {
	return introspect.PackageAPI{
		Package: introspect.PackageInfo{
			Name:         "demo",
			ModuleCount:  1,
			ElementCount: 3,
			PublicCount:  2,
		},
		Elements: map[string]introspect.Element{
			"demo.client.Client": {
				Name: "Client", Kind: introspect.KindClass,
				Module: "demo.client", QualName: "demo.client.Client",
				Signature: "class Client(Base)", Bases: []string{"Base"},
				Docstring: "Talks to the API.", Public: true,
			},
			"demo.client.fetch": {
				Name: "fetch", Kind: introspect.KindFunction,
				Module: "demo.client", QualName: "demo.client.fetch",
				Signature: "def fetch(url: str) -> dict",
				Parameters: []introspect.Parameter{{Name: "url", Annotation: "str"}},
				Returns:   "dict", Docstring: "Fetch a resource.", Public: true,
			},
			"demo.client._hidden": {
				Name: "_hidden", Kind: introspect.KindFunction,
				Module: "demo.client", QualName: "demo.client._hidden",
			},
		},
		Modules: map[string]introspect.ModuleInfo{
			"demo.client": {Name: "demo.client", Docstring: "Client module.", Lines: 120},
		},
	}
}

func newLayout(t *testing.T) storage.Layout {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure())
	return layout
}

func TestStubGenerator_GeneratePublic(t *testing.T) {
	layout := newLayout(t)
	g := NewStubGenerator(layout, zaptest.NewLogger(t))

	written, err := g.Generate(testAPI(), nil, false)
	require.NoError(t, err)
	assert.Len(t, written, 2, "only public elements get stubs")

	var classPage string
	for _, p := range written {
		if strings.Contains(p, "Client_class") {
			classPage = p
		}
	}
	require.NotEmpty(t, classPage)

	content, err := os.ReadFile(classPage)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# demo.client.Client")
	assert.Contains(t, string(content), "Talks to the API.")
	assert.Contains(t, string(content), "extends `Base`")
}

func TestStubGenerator_ForceAndSkip(t *testing.T) {
	layout := newLayout(t)
	g := NewStubGenerator(layout, zaptest.NewLogger(t))
	api := testAPI()

	written, err := g.Generate(api, []string{"demo.client.fetch"}, false)
	require.NoError(t, err)
	require.Len(t, written, 1)

	// Second run without force writes nothing.
	written, err = g.Generate(api, []string{"demo.client.fetch"}, false)
	require.NoError(t, err)
	assert.Empty(t, written)

	written, err = g.Generate(api, []string{"demo.client.fetch"}, true)
	require.NoError(t, err)
	assert.Len(t, written, 1)
}

func TestStubGenerator_ShortNameAndUnknown(t *testing.T) {
	layout := newLayout(t)
	g := NewStubGenerator(layout, zaptest.NewLogger(t))

	written, err := g.Generate(testAPI(), []string{"fetch"}, false)
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Contains(t, written[0], "fetch_function.md")

	_, err = g.Generate(testAPI(), []string{"nope"}, false)
	assert.Error(t, err)
}

func TestStubGenerator_CustomTemplateWins(t *testing.T) {
	layout := newLayout(t)
	g := NewStubGenerator(layout, zaptest.NewLogger(t))
	require.NoError(t, g.EnsureTemplates())

	custom := []byte("CUSTOM {{ .Element.QualName }}")
	require.NoError(t, os.WriteFile(
		filepath.Join(layout.TemplateDir(), "function.md.tmpl"), custom, 0o644))

	written, err := g.Generate(testAPI(), []string{"demo.client.fetch"}, true)
	require.NoError(t, err)
	content, err := os.ReadFile(written[0])
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM demo.client.fetch", string(content))
}

func TestAutodocBuilder_Build(t *testing.T) {
	layout := newLayout(t)
	b := NewAutodocBuilder(layout, zaptest.NewLogger(t))
	api := testAPI()
	structure := introspect.PackageStructure{
		TotalLines: 120,
		Dependencies: introspect.Dependencies{
			Stdlib:     []string{"json"},
			ThirdParty: []string{"requests"},
		},
	}

	diff := &diffing.VersionDiff{
		Info:          diffing.ComparisonInfo{FromVersion: "0.9.0", ToVersion: "1.0.0"},
		SuggestedBump: "minor",
		Changes: []diffing.Change{{
			Element: "demo.client.fetch", Type: diffing.ChangeAddition,
			Severity: diffing.SeverityInfo, Impact: diffing.ImpactCompatible,
			Detail: "function demo.client.fetch added",
		}},
	}

	result, err := b.Build(api, structure, "1.0.0", diff)
	require.NoError(t, err)
	assert.NotEmpty(t, result.BuildID)
	assert.Equal(t, 2, result.StubsWritten)
	assert.Equal(t, "0.9.0", result.ComparedWith)

	overview, err := os.ReadFile(filepath.Join(layout.GeneratedDocsDir(), "package_overview.md"))
	require.NoError(t, err)
	assert.Contains(t, string(overview), "# demo 1.0.0")
	assert.Contains(t, string(overview), "requests")

	index, err := os.ReadFile(filepath.Join(layout.GeneratedDocsDir(), "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "api_summary")
	assert.Contains(t, string(index), "change_report")
	assert.Contains(t, string(index), "api_reference/")
}

func TestDeprecationManager(t *testing.T) {
	layout := newLayout(t)
	tracker, err := diffing.NewTracker(layout.TrackerDB(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer tracker.Close()

	m := NewDeprecationManager(layout, tracker, zaptest.NewLogger(t))

	api := testAPI()
	old := api.Elements["demo.client.fetch"]
	old.Decorators = []string{"deprecated"}
	old.Docstring = "Deprecated: use fetch_v2."
	api.Elements["demo.client.fetch"] = old

	candidates := m.FindCandidates(api)
	require.Len(t, candidates, 1)
	assert.Equal(t, "demo.client.fetch", candidates[0].Element)

	require.NoError(t, m.Record(candidates, "1.2.0"))

	path, err := m.WriteMigrationGuide()
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "demo.client.fetch")
	assert.Contains(t, string(content), "1.2.0")
}
