package introspect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleElement() Element {
	return Element{
		Name:     "fetch",
		Kind:     KindFunction,
		Module:   "demo.client",
		QualName: "demo.client.fetch",
		Parameters: []Parameter{
			{Name: "url", Annotation: "str"},
			{Name: "timeout", Annotation: "float", Default: "30.0"},
		},
		Returns:   "dict",
		Docstring: "Fetch a resource.",
	}
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHasher(SensitivityModerate)
	a, err := h.Hash(sampleElement())
	require.NoError(t, err)
	b, err := h.Hash(sampleElement())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHash_SensitivityLevels(t *testing.T) {
	el := sampleElement()
	changed := sampleElement()
	changed.Docstring = "Different docs."

	strict := NewHasher(SensitivityStrict)
	moderate := NewHasher(SensitivityModerate)
	relaxed := NewHasher(SensitivityRelaxed)

	sa, _ := strict.Hash(el)
	sb, _ := strict.Hash(changed)
	assert.NotEqual(t, sa, sb, "strict sees docstring changes")

	ma, _ := moderate.Hash(el)
	mb, _ := moderate.Hash(changed)
	assert.Equal(t, ma, mb, "moderate ignores docstrings")

	renamedParam := sampleElement()
	renamedParam.Parameters[0].Name = "uri"
	mc, _ := moderate.Hash(renamedParam)
	assert.NotEqual(t, ma, mc, "moderate sees parameter renames")

	ra, _ := relaxed.Hash(el)
	rb, _ := relaxed.Hash(renamedParam)
	assert.Equal(t, ra, rb, "relaxed only sees arity")

	dropped := sampleElement()
	dropped.Parameters = dropped.Parameters[:1]
	rc, _ := relaxed.Hash(dropped)
	assert.NotEqual(t, ra, rc)
}

func TestCompareSignatures(t *testing.T) {
	old := map[string]string{
		"demo.a": "h1",
		"demo.b": "h2",
		"demo.c": "h3",
	}
	new := map[string]string{
		"demo.a": "h1",
		"demo.b": "h2-changed",
		"demo.d": "h4",
	}

	got := CompareSignatures(old, new)
	want := SignatureComparison{
		Added:     []string{"demo.d"},
		Removed:   []string{"demo.c"},
		Modified:  []string{"demo.b"},
		Unchanged: []string{"demo.a"},
		Summary: ComparisonSummary{
			TotalChanges:       3,
			BreakingChanges:    2,
			NonBreakingChanges: 1,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("comparison mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareSignatures_Empty(t *testing.T) {
	got := CompareSignatures(nil, nil)
	assert.Zero(t, got.Summary.TotalChanges)
	assert.Empty(t, got.Added)
}
