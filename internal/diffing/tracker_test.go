package diffing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker(filepath.Join(t.TempDir(), "version_tracking.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestRegisterVersion_SetsCurrent(t *testing.T) {
	tr := newTestTracker(t)

	_, err := tr.RegisterVersion("1.0.0", "snap1.json", "first", nil)
	require.NoError(t, err)
	v2, err := tr.RegisterVersion("1.1.0", "snap2.json", "", []Change{
		{Element: "demo.fetch", Type: ChangeAddition, Severity: SeverityInfo, Impact: ImpactCompatible},
	})
	require.NoError(t, err)
	assert.True(t, v2.IsCurrent)
	assert.Equal(t, 1, v2.Minor)

	cur, ok, err := tr.CurrentVersion()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.1.0", cur.VersionString)

	v1, ok, err := tr.GetVersion("1.0.0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, v1.IsCurrent)
}

func TestRegisterVersion_DuplicateFails(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.RegisterVersion("1.0.0", "", "", nil)
	require.NoError(t, err)
	_, err = tr.RegisterVersion("1.0.0", "", "", nil)
	assert.Error(t, err)
}

func TestListVersions_SemverOrder(t *testing.T) {
	tr := newTestTracker(t)
	for _, v := range []string{"1.0.0", "2.0.0-rc.1", "1.2.0", "2.0.0"} {
		_, err := tr.RegisterVersion(v, "", "", nil)
		require.NoError(t, err)
	}

	versions, err := tr.ListVersions()
	require.NoError(t, err)
	var got []string
	for _, v := range versions {
		got = append(got, v.VersionString)
	}
	assert.Equal(t, []string{"2.0.0", "2.0.0-rc.1", "1.2.0", "1.0.0"}, got)
}

func TestDeprecations(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.RecordDeprecation(Deprecation{
		Element:      "demo.old",
		SinceVersion: "1.1.0",
		Replacement:  "demo.new",
	}))
	// Upsert keeps one row per element.
	require.NoError(t, tr.RecordDeprecation(Deprecation{
		Element:      "demo.old",
		SinceVersion: "1.2.0",
		Replacement:  "demo.newer",
	}))

	deps, err := tr.ListDeprecations()
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "1.2.0", deps[0].SinceVersion)
	assert.Equal(t, "demo.newer", deps[0].Replacement)
}

func TestStats(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.RegisterVersion("1.0.0", "", "", []Change{
		{Element: "a", Type: ChangeAddition, Severity: SeverityInfo, Impact: ImpactCompatible},
		{Element: "b", Type: ChangeRemoval, Severity: SeverityCritical, Impact: ImpactBreaking},
	})
	require.NoError(t, err)

	s, err := tr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalVersions)
	assert.Equal(t, 2, s.TotalChanges)
	assert.Equal(t, "1.0.0", s.CurrentVersion)
}

func TestParseVersion(t *testing.T) {
	v := parseVersion("v2.3.4-beta.2+build.5")
	assert.Equal(t, 2, v.Major)
	assert.Equal(t, 3, v.Minor)
	assert.Equal(t, 4, v.Patch)
	assert.Equal(t, "beta.2", v.PreRelease)
	assert.Equal(t, "build.5", v.BuildMetadata)

	raw := parseVersion("nightly-2024")
	assert.Equal(t, "nightly-2024", raw.VersionString)
	assert.Zero(t, raw.Major)
}

func TestCompareVersionStrings(t *testing.T) {
	assert.Equal(t, -1, CompareVersionStrings("1.0.0", "1.0.1"))
	assert.Equal(t, 1, CompareVersionStrings("2.0.0", "1.9.9"))
	assert.Equal(t, 0, CompareVersionStrings("1.0.0", "v1.0.0"))
	// A release outranks its pre-releases.
	assert.Equal(t, 1, CompareVersionStrings("1.0.0", "1.0.0-rc.1"))
	assert.Equal(t, -1, CompareVersionStrings("1.0.0-alpha.1", "1.0.0-beta.1"))
}

func TestNextVersion(t *testing.T) {
	cases := []struct {
		current, bump, want string
	}{
		{"1.2.3", "major", "2.0.0"},
		{"1.2.3", "minor", "1.3.0"},
		{"1.2.3", "patch", "1.2.4"},
		{"1.2.3", "prerelease", "1.2.4-alpha.1"},
		{"1.2.3-alpha.1", "prerelease", "1.2.3-alpha.2"},
	}
	for _, c := range cases {
		got, err := NextVersion(c.current, c.bump)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s %s", c.current, c.bump)
	}

	_, err := NextVersion("1.0.0", "mega")
	assert.Error(t, err)
}
