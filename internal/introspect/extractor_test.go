package introspect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const clientModule = `"""HTTP client for the demo API."""
import json
import os
from typing import Optional

import requests

__all__ = ["Client", "fetch"]

DEFAULT_TIMEOUT: float = 30.0
_RETRIES = 3


class Client:
    """Talks to the demo API.

    Example:
        >>> c = Client("token")
        >>> c.ping()
        True
    """

    def __init__(self, token: str, timeout: float = DEFAULT_TIMEOUT):
        self.token = token
        self.timeout = timeout

    def ping(self) -> bool:
        """Check connectivity."""
        return True

    async def fetch_async(self, url: str) -> dict:
        """Fetch a resource asynchronously."""
        return {}

    def _refresh(self):
        pass


@staticmethod
def _module_helper():
    pass


def fetch(url: str, *, timeout: Optional[float] = None) -> dict:
    """Fetch a resource.

    >>> fetch("https://example.com")
    {}
    """
    return {}


def internal_only():
    """Not exported via __all__."""
    return None
`

const initModule = `"""Demo package."""
from .client import Client, fetch
`

func writeFixture(t *testing.T) (root, sourceDir string) {
	t.Helper()
	root = t.TempDir()
	sourceDir = filepath.Join("src", "demo")
	pkgDir := filepath.Join(root, sourceDir)
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "__init__.py"), []byte(initModule), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "client.py"), []byte(clientModule), 0o644))
	return root, sourceDir
}

func extractFixture(t *testing.T) PackageAPI {
	t.Helper()
	root, sourceDir := writeFixture(t)
	ex := NewExtractor(root, zaptest.NewLogger(t))
	api, err := ex.Extract(context.Background(), "demo", sourceDir)
	require.NoError(t, err)
	return api
}

func TestExtract_Elements(t *testing.T) {
	api := extractFixture(t)

	assert.Equal(t, "demo", api.Package.Name)
	assert.Equal(t, 2, api.Package.ModuleCount)

	client, ok := api.Elements["demo.client.Client"]
	require.True(t, ok)
	assert.Equal(t, KindClass, client.Kind)
	assert.True(t, client.Public)
	assert.Contains(t, client.Docstring, "Talks to the demo API.")

	ping, ok := api.Elements["demo.client.Client.ping"]
	require.True(t, ok)
	assert.Equal(t, KindMethod, ping.Kind)
	assert.Equal(t, "bool", ping.Returns)
	assert.Equal(t, "Check connectivity.", ping.Docstring)

	fetchAsync := api.Elements["demo.client.Client.fetch_async"]
	assert.True(t, fetchAsync.Async)

	fetch, ok := api.Elements["demo.client.fetch"]
	require.True(t, ok)
	require.Len(t, fetch.Parameters, 2)
	assert.Equal(t, Parameter{Name: "url", Annotation: "str"}, fetch.Parameters[0])
	assert.Equal(t, "timeout", fetch.Parameters[1].Name)
	assert.Equal(t, "Optional[float]", fetch.Parameters[1].Annotation)
	assert.Equal(t, "None", fetch.Parameters[1].Default)
	assert.Equal(t, "dict", fetch.Returns)
	assert.True(t, fetch.HasTypeHints())
}

func TestExtract_Visibility(t *testing.T) {
	api := extractFixture(t)

	assert.False(t, api.Elements["demo.client.Client._refresh"].Public)
	assert.False(t, api.Elements["demo.client.Client.__init__"].Public)

	// __all__ narrows module-level publicness.
	assert.False(t, api.Elements["demo.client.internal_only"].Public)
	assert.True(t, api.Elements["demo.client.fetch"].Public)
	assert.True(t, api.Elements["demo.client.Client.ping"].Public)

	// Module variables.
	timeout, ok := api.Elements["demo.client.DEFAULT_TIMEOUT"]
	require.True(t, ok)
	assert.Equal(t, KindVariable, timeout.Kind)
	assert.False(t, timeout.Public, "not in __all__")
	assert.False(t, api.Elements["demo.client._RETRIES"].Public)
}

func TestExtract_ModuleInfo(t *testing.T) {
	api := extractFixture(t)

	client, ok := api.Modules["demo.client"]
	require.True(t, ok)
	assert.Equal(t, "HTTP client for the demo API.", client.Docstring)
	assert.Equal(t, []string{"Client", "fetch"}, client.All)
	assert.Contains(t, client.Imports, "json")
	assert.Contains(t, client.Imports, "requests")
	assert.Contains(t, client.Imports, "typing")

	root, ok := api.Modules["demo"]
	require.True(t, ok)
	assert.Equal(t, "Demo package.", root.Docstring)
}

func TestExtract_NoSources(t *testing.T) {
	ex := NewExtractor(t.TempDir(), zaptest.NewLogger(t))
	_, err := ex.Extract(context.Background(), "demo", "src/demo")
	assert.Error(t, err)
}

func TestAnalyzeStructure(t *testing.T) {
	root, sourceDir := writeFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tests"), 0o755))
	ex := NewExtractor(root, zaptest.NewLogger(t))
	api, err := ex.Extract(context.Background(), "demo", sourceDir)
	require.NoError(t, err)

	s := AnalyzeStructure(root, api)
	assert.Contains(t, s.Dependencies.Stdlib, "json")
	assert.Contains(t, s.Dependencies.Stdlib, "typing")
	assert.Contains(t, s.Dependencies.ThirdParty, "requests")
	assert.Contains(t, s.Dependencies.Internal, ".")
	assert.True(t, s.HasTests)
	assert.False(t, s.HasDocs)
	assert.Greater(t, s.TotalLines, 0)
	assert.Equal(t, []string{"demo.client"}, s.ModuleTree["demo"])
}
