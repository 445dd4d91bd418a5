package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ultrathink/internal/introspect"
)

func helpAPI(fetchDoc string) introspect.PackageAPI {
	return introspect.PackageAPI{
		Package: introspect.PackageInfo{Name: "demo"},
		Elements: map[string]introspect.Element{
			"demo.fetch": {
				Name: "fetch", Kind: introspect.KindFunction,
				Module: "demo", QualName: "demo.fetch",
				Signature: "def fetch(url: str) -> dict",
				Docstring: fetchDoc, Public: true,
			},
			"demo._internal": {
				Name: "_internal", Kind: introspect.KindFunction,
				Module: "demo", QualName: "demo._internal",
			},
		},
	}
}

func TestCapture_PublicOnly(t *testing.T) {
	h := NewHelpSnapshotter(newLayout(t), zaptest.NewLogger(t))
	snap := h.Capture(helpAPI("Fetch a resource."), "1.0.0")

	require.Len(t, snap.Entries, 1)
	entry := snap.Entries["demo.fetch"]
	assert.Contains(t, entry.Text, "Help on function fetch in module demo:")
	assert.Contains(t, entry.Text, "    Fetch a resource.")
	assert.Len(t, entry.Hash, 64)
}

func TestNormalizeHelp(t *testing.T) {
	in := "object at 0x7f3a2b1c  \n/home/user/src/demo/client.py\n"
	out := NormalizeHelp(in)
	assert.Contains(t, out, "0x...")
	assert.Contains(t, out, "<path>")
	assert.NotContains(t, out, "  \n")
}

func TestSaveLoadCompare(t *testing.T) {
	h := NewHelpSnapshotter(newLayout(t), zaptest.NewLogger(t))

	oldSnap := h.Capture(helpAPI("Fetch a resource."), "1.0.0")
	_, err := h.Save(oldSnap)
	require.NoError(t, err)

	loaded, err := h.Load("1.0.0")
	require.NoError(t, err)
	assert.Equal(t, oldSnap.Entries["demo.fetch"].Hash, loaded.Entries["demo.fetch"].Hash)

	newAPI := helpAPI("Fetch a resource quickly.")
	newAPI.Elements["demo.extra"] = introspect.Element{
		Name: "extra", Kind: introspect.KindFunction,
		Module: "demo", QualName: "demo.extra", Public: true,
	}
	newSnap := h.Capture(newAPI, "1.1.0")

	cmp := h.Compare(loaded, newSnap)
	assert.Equal(t, []string{"demo.extra"}, cmp.Added)
	assert.Empty(t, cmp.Removed)
	require.Len(t, cmp.Modified, 1)
	assert.Equal(t, "demo.fetch", cmp.Modified[0].Element)
	assert.Contains(t, cmp.Modified[0].Diff, "+")
	assert.True(t, cmp.HasBreakingChanges())
}

func TestCompare_NoChanges(t *testing.T) {
	h := NewHelpSnapshotter(newLayout(t), zaptest.NewLogger(t))
	snap := h.Capture(helpAPI("Stable docs."), "1.0.0")
	cmp := h.Compare(snap, snap)
	assert.False(t, cmp.HasBreakingChanges())
	assert.Empty(t, cmp.Added)
}

func TestLoad_Missing(t *testing.T) {
	h := NewHelpSnapshotter(newLayout(t), zaptest.NewLogger(t))
	_, err := h.Load("0.0.1")
	assert.Error(t, err)
}
