package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullTable(t *testing.T) {
	data := []byte(`
[project]
name = "gapless-crypto-data"

[tool.ultrathink]
enabled = true
package_name = "gapless_crypto_data"
source_directory = "src/gapless_crypto_data"

[tool.ultrathink.validation]
validate_doctests = true
check_completeness = true
completeness_threshold = 0.9
doctest_mode = "static"

[tool.ultrathink.ci]
pre_commit_validation = true
github_actions_integration = false
gate_on_incomplete_docs = true
gate_on_failed_doctests = true
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "gapless_crypto_data", cfg.PackageName)
	assert.Equal(t, "src/gapless_crypto_data", cfg.SourceDirectory)
	assert.Equal(t, 0.9, cfg.Validation.CompletenessThreshold)
	assert.Equal(t, DoctestModeStatic, cfg.Validation.DoctestMode)
	assert.False(t, cfg.CI.GitHubActionsIntegration)
	assert.True(t, cfg.CI.GateOnFailedDoctests)
}

func TestParse_DefaultsFill(t *testing.T) {
	data := []byte(`
[tool.ultrathink]
enabled = true
package_name = "mypkg"
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, filepath.ToSlash(filepath.Join("src", "mypkg")), cfg.SourceDirectory)
	assert.Equal(t, 0.95, cfg.Validation.CompletenessThreshold)
	assert.Equal(t, DoctestModeExecute, cfg.Validation.DoctestMode)
}

func TestParse_MissingTable(t *testing.T) {
	_, err := Parse([]byte(`[project]` + "\n" + `name = "x"`))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "pyproject.toml"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestValidate_Rejections(t *testing.T) {
	cfg := Default("pkg")
	cfg.Validation.CompletenessThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default("pkg")
	cfg.Validation.DoctestMode = "pytest"
	assert.Error(t, cfg.Validate())

	cfg = Default("")
	assert.Error(t, cfg.Validate())
}

func TestWriteInto_PreservesOtherTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	seed := []byte("[project]\nname = \"demo\"\nversion = \"1.0.0\"\n")
	require.NoError(t, os.WriteFile(path, seed, 0o644))

	require.NoError(t, WriteInto(path, Default("demo")))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.PackageName)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[project]")
	assert.Contains(t, string(data), "1.0.0")
}

func TestWriteInto_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	want := Default("roundtrip")
	want.Validation.CompletenessThreshold = 0.8

	require.NoError(t, WriteInto(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
