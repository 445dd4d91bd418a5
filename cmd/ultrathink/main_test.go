package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every command that extracts an API accepts --package as a config override.
func TestPackageFlagRegistered(t *testing.T) {
	for _, name := range []string{
		"setup", "introspect", "snapshot", "generate-stubs", "build", "diff",
		"validate", "check-completeness", "validate-doctests",
		"check-staged-files", "generate-pr-report", "watch",
	} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("package"), "%s must accept --package", name)
	}
}

func TestAllSubcommandsRegistered(t *testing.T) {
	want := []string{
		"setup", "introspect", "snapshot", "generate-stubs", "build", "diff",
		"validate", "check-completeness", "validate-doctests",
		"check-staged-files", "generate-pr-report", "check-new-apis",
		"update-index", "watch",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
