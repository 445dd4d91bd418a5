package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ultrathink/internal/generate"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

func newLayout(t *testing.T) storage.Layout {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure())
	return layout
}

func documentedAPI() introspect.PackageAPI {
	return introspect.PackageAPI{
		Package: introspect.PackageInfo{Name: "demo", PublicCount: 2},
		Elements: map[string]introspect.Element{
			"demo.good": {
				Name: "good", Kind: introspect.KindFunction,
				Module: "demo", QualName: "demo.good",
				Signature: "def good(x: int) -> int",
				Docstring: "Does the right thing.\n\nExample:\n    >>> good(1)\n    1",
				Parameters: []introspect.Parameter{{Name: "x", Annotation: "int"}},
				Returns:   "int", Public: true, SourceFile: "src/demo/good.py",
			},
			"demo.bad": {
				Name: "bad", Kind: introspect.KindFunction,
				Module: "demo", QualName: "demo.bad",
				Signature: "def bad(x)",
				Public:    true, SourceFile: "src/demo/bad.py",
			},
		},
		Modules: map[string]introspect.ModuleInfo{},
	}
}

func TestCheck_ScoresAndThreshold(t *testing.T) {
	layout := newLayout(t)
	checker := NewCompletenessChecker(layout, zaptest.NewLogger(t))
	api := documentedAPI()

	// Stubs exist for both so the stub weight does not skew the comparison.
	_, err := generate.NewStubGenerator(layout, zaptest.NewLogger(t)).Generate(api, nil, true)
	require.NoError(t, err)

	result, err := checker.Check(api, 0.95)
	require.NoError(t, err)
	require.Len(t, result.Elements, 2)

	var good, bad ElementCheck
	for _, el := range result.Elements {
		switch el.Element {
		case "demo.good":
			good = el
		case "demo.bad":
			bad = el
		}
	}

	assert.True(t, good.HasDocstring)
	assert.True(t, good.HasExamples)
	assert.True(t, good.HasTypeHints)
	assert.True(t, good.HasStub)
	assert.Greater(t, good.Score, 0.9)

	assert.False(t, bad.HasDocstring)
	assert.Contains(t, bad.Issues, "missing docstring")
	assert.Less(t, bad.Score, 0.5)

	assert.False(t, result.Passed)
	assert.Less(t, result.CompletenessPercent, 95.0)

	// Result is cached.
	cached, err := storage.ListByPrefix(layout.ValidationCacheDir(), "completeness_check_")
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestCheck_EmptyPublicAPIPasses(t *testing.T) {
	layout := newLayout(t)
	checker := NewCompletenessChecker(layout, zaptest.NewLogger(t))

	api := introspect.PackageAPI{
		Package:  introspect.PackageInfo{Name: "demo"},
		Elements: map[string]introspect.Element{},
	}
	result, err := checker.Check(api, 0.95)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, 100.0, result.CompletenessPercent)
}

func TestCheckSubset_FiltersByFile(t *testing.T) {
	layout := newLayout(t)
	checker := NewCompletenessChecker(layout, zaptest.NewLogger(t))

	result, err := checker.CheckSubset(documentedAPI(), 0.5,
		map[string]bool{"src/demo/bad.py": true})
	require.NoError(t, err)
	require.Len(t, result.Elements, 1)
	assert.Equal(t, "demo.bad", result.Elements[0].Element)
}

func TestAnalyzeDocstring(t *testing.T) {
	quality, issues := analyzeDocstring("")
	assert.Zero(t, quality)
	assert.Empty(t, issues)

	_, issues = analyzeDocstring("short")
	assert.Contains(t, issues, "docstring is too short")

	_, issues = analyzeDocstring("Does a thing.\n\nTODO: finish this doc")
	assert.Contains(t, issues, "docstring contains TODO markers")

	quality, issues = analyzeDocstring("Parses input safely.\n\nArgs:\n    data: raw bytes\n\nReturns:\n    parsed value")
	assert.Empty(t, issues)
	assert.Equal(t, 1.0, quality)
}

func TestRenderReport(t *testing.T) {
	result := CompletenessResult{
		Package:             "demo",
		Threshold:           0.95,
		CompletenessPercent: 72.5,
		Elements: []ElementCheck{
			{Element: "demo.bad", Score: 0.4, Issues: []string{"missing docstring"}},
		},
	}
	out := RenderReport(result)
	assert.Contains(t, out, "72.5%")
	assert.Contains(t, out, "✗ failed")
	assert.Contains(t, out, "demo.bad")
}
