package diffing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ultrathink/internal/introspect"
)

func fn(params ...introspect.Parameter) *introspect.Element {
	return &introspect.Element{
		Name:       "fetch",
		Kind:       introspect.KindFunction,
		Module:     "demo.client",
		QualName:   "demo.client.fetch",
		Parameters: params,
		Returns:    "dict",
	}
}

func TestClassify_Removal(t *testing.T) {
	changes := Classify("demo.client.fetch", fn(), nil)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeRemoval, changes[0].Type)
	assert.Equal(t, SeverityCritical, changes[0].Severity)
	assert.Equal(t, ImpactBreaking, changes[0].Impact)
	assert.NotEmpty(t, changes[0].MigrationNote)
}

func TestClassify_Addition(t *testing.T) {
	changes := Classify("demo.client.fetch", nil, fn())
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeAddition, changes[0].Type)
	assert.Equal(t, ImpactCompatible, changes[0].Impact)
}

func TestClassify_ParameterRemoval(t *testing.T) {
	old := fn(introspect.Parameter{Name: "url"}, introspect.Parameter{Name: "retries"})
	new := fn(introspect.Parameter{Name: "url"})

	changes := Classify("demo.client.fetch", old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, SeverityCritical, changes[0].Severity)
	assert.Equal(t, ImpactBreaking, changes[0].Impact)
	assert.Contains(t, changes[0].Detail, `"retries"`)
}

func TestClassify_AnnotationAndReturnChanges(t *testing.T) {
	old := fn(introspect.Parameter{Name: "url", Annotation: "str"})
	new := fn(introspect.Parameter{Name: "url", Annotation: "bytes"})
	new.Returns = "list"

	changes := Classify("demo.client.fetch", old, new)
	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, SeverityHigh, c.Severity)
		assert.Equal(t, ImpactBreaking, c.Impact)
	}
}

func TestClassify_RequiredVsOptionalParameter(t *testing.T) {
	old := fn(introspect.Parameter{Name: "url"})

	required := fn(introspect.Parameter{Name: "url"}, introspect.Parameter{Name: "token"})
	changes := Classify("demo.client.fetch", old, required)
	require.Len(t, changes, 1)
	assert.Equal(t, ImpactBreaking, changes[0].Impact)

	optional := fn(introspect.Parameter{Name: "url"},
		introspect.Parameter{Name: "token", Default: "None"})
	changes = Classify("demo.client.fetch", old, optional)
	require.Len(t, changes, 1)
	assert.Equal(t, ImpactCompatible, changes[0].Impact)
}

func TestClassify_Deprecation(t *testing.T) {
	old := fn()
	new := fn()
	new.Decorators = []string{"deprecated"}

	changes := Classify("demo.client.fetch", old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeDeprecation, changes[0].Type)
	assert.Equal(t, ImpactCompatible, changes[0].Impact)
}

func TestClassify_KindChange(t *testing.T) {
	old := fn()
	new := fn()
	new.Kind = introspect.KindClass

	changes := Classify("demo.client.fetch", old, new)
	require.NotEmpty(t, changes)
	assert.Equal(t, SeverityCritical, changes[0].Severity)
}

func TestSuggestVersionBump(t *testing.T) {
	assert.Equal(t, "patch", SuggestVersionBump(nil))
	assert.Equal(t, "minor", SuggestVersionBump([]Change{
		{Type: ChangeAddition, Impact: ImpactCompatible},
	}))
	assert.Equal(t, "major", SuggestVersionBump([]Change{
		{Type: ChangeAddition, Impact: ImpactCompatible},
		{Type: ChangeRemoval, Impact: ImpactBreaking},
	}))
}

func TestSortChanges(t *testing.T) {
	changes := []Change{
		{Element: "b", Severity: SeverityInfo},
		{Element: "a", Severity: SeverityCritical},
		{Element: "c", Severity: SeverityCritical},
	}
	SortChanges(changes)
	assert.Equal(t, "a", changes[0].Element)
	assert.Equal(t, "c", changes[1].Element)
	assert.Equal(t, "b", changes[2].Element)
}
