package diffing

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

func apiWith(t *testing.T, elements ...introspect.Element) introspect.PackageAPI {
	t.Helper()
	api := introspect.PackageAPI{
		Package:  introspect.PackageInfo{Name: "demo"},
		Elements: map[string]introspect.Element{},
		Modules:  map[string]introspect.ModuleInfo{},
	}
	for _, el := range elements {
		api.Elements[el.QualName] = el
	}
	api.Package.ElementCount = len(api.Elements)
	return api
}

func element(qual, doc string, params ...introspect.Parameter) introspect.Element {
	return introspect.Element{
		Name:       qual[len("demo.client."):],
		Kind:       introspect.KindFunction,
		Module:     "demo.client",
		QualName:   qual,
		Docstring:  doc,
		Parameters: params,
		Public:     true,
	}
}

func newTestDiffer(t *testing.T) (*Differ, storage.Layout) {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure())
	return NewDiffer(layout, zaptest.NewLogger(t)), layout
}

func TestSnapshotRoundTrip(t *testing.T) {
	d, _ := newTestDiffer(t)
	api := apiWith(t, element("demo.client.fetch", "Fetch things."))

	path, err := d.SaveSnapshot(api, "1.0.0", map[string]string{"builder": "test"})
	require.NoError(t, err)
	assert.Contains(t, path, "api_snapshot_1.0.0_")

	snap, err := d.LoadSnapshot("1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", snap.Version)
	assert.Len(t, snap.SignatureHashes, 1)
	assert.Equal(t, "Fetch things.", snap.API.Elements["demo.client.fetch"].Docstring)
}

func TestLoadSnapshot_Missing(t *testing.T) {
	d, _ := newTestDiffer(t)
	_, err := d.LoadSnapshot("9.9.9")
	assert.Error(t, err)
}

func TestCompare_DetectsChanges(t *testing.T) {
	d, _ := newTestDiffer(t)

	oldAPI := apiWith(t,
		element("demo.client.fetch", "Fetch things.", introspect.Parameter{Name: "url", Annotation: "str"}),
		element("demo.client.legacy", "Old helper."),
	)
	newAPI := apiWith(t,
		element("demo.client.fetch", "Fetch things better.", introspect.Parameter{Name: "url", Annotation: "bytes"}),
		element("demo.client.shiny", "New helper."),
	)

	_, err := d.SaveSnapshot(oldAPI, "1.0.0", nil)
	require.NoError(t, err)
	_, err = d.SaveSnapshot(newAPI, "2.0.0", nil)
	require.NoError(t, err)

	diff, err := d.Compare("1.0.0", "2.0.0")
	require.NoError(t, err)

	assert.Equal(t, []string{"demo.client.shiny"}, diff.SignatureChanges.Added)
	assert.Equal(t, []string{"demo.client.legacy"}, diff.SignatureChanges.Removed)
	assert.Equal(t, []string{"demo.client.fetch"}, diff.SignatureChanges.Modified)

	assert.NotEmpty(t, diff.BreakingChanges)
	assert.Equal(t, "major", diff.SuggestedBump)

	require.Len(t, diff.DocChanges, 1)
	assert.Equal(t, "demo.client.fetch", diff.DocChanges[0].Element)
	assert.Contains(t, diff.DocChanges[0].Diff, "+ Fetch things better.")
}

func TestSaveDiff(t *testing.T) {
	d, layout := newTestDiffer(t)
	diff := VersionDiff{
		Info: ComparisonInfo{FromVersion: "1.0.0", ToVersion: "1.1.0", ComparedAt: time.Now()},
	}
	path, err := d.SaveDiff(diff)
	require.NoError(t, err)
	assert.Contains(t, path, layout.DiffDir())

	var loaded VersionDiff
	require.NoError(t, storage.ReadJSON(path, &loaded))
	assert.Equal(t, "1.1.0", loaded.Info.ToVersion)
}

func TestCleanupSnapshots_KeepsCurrent(t *testing.T) {
	d, layout := newTestDiffer(t)
	api := apiWith(t, element("demo.client.fetch", "Docs."))

	oldPath, err := d.SaveSnapshot(api, "0.9.0", nil)
	require.NoError(t, err)
	curPath, err := d.SaveSnapshot(api, "1.0.0", nil)
	require.NoError(t, err)

	stale := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, ageFile(oldPath, stale))
	require.NoError(t, ageFile(curPath, stale))

	removed, err := d.CleanupSnapshots(30*24*time.Hour, "1.0.0")
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, oldPath, removed[0])

	_, err = d.LoadSnapshot("1.0.0")
	assert.NoError(t, err)

	remaining, err := storage.ListByPrefix(layout.SnapshotDir(), "api_snapshot_")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func ageFile(path string, when time.Time) error {
	return os.Chtimes(path, when, when)
}
