package introspect

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dependencies buckets a package's imports by origin.
type Dependencies struct {
	Stdlib     []string `json:"stdlib"`
	ThirdParty []string `json:"third_party"`
	Internal   []string `json:"internal"`
}

// PackageStructure is the output of AnalyzeStructure.
type PackageStructure struct {
	ModuleTree   map[string][]string `json:"module_tree"`
	Dependencies Dependencies        `json:"dependencies"`
	HasTests     bool                `json:"has_tests"`
	HasDocs      bool                `json:"has_docs"`
	TotalLines   int                 `json:"total_lines"`
}

// Python 3 standard library roots we care to recognize. Unknown names fall
// into third_party, which is the safe bucket for gating purposes.
var stdlibModules = map[string]bool{
	"abc": true, "argparse": true, "ast": true, "asyncio": true, "base64": true,
	"collections": true, "concurrent": true, "contextlib": true, "copy": true,
	"csv": true, "dataclasses": true, "datetime": true, "decimal": true,
	"doctest": true, "enum": true, "functools": true, "glob": true,
	"hashlib": true, "importlib": true, "inspect": true, "io": true,
	"itertools": true, "json": true, "logging": true, "math": true, "os": true,
	"pathlib": true, "pickle": true, "platform": true, "pprint": true,
	"queue": true, "random": true, "re": true, "shutil": true, "signal": true,
	"socket": true, "sqlite3": true, "string": true, "struct": true,
	"subprocess": true, "sys": true, "tempfile": true, "textwrap": true,
	"threading": true, "time": true, "tomllib": true, "traceback": true,
	"types": true, "typing": true, "unittest": true, "urllib": true,
	"uuid": true, "warnings": true, "weakref": true, "zipfile": true,
}

// AnalyzeStructure derives the module tree, dependency buckets, and project
// metadata from an extracted API.
func AnalyzeStructure(projectRoot string, api PackageAPI) PackageStructure {
	s := PackageStructure{ModuleTree: make(map[string][]string)}

	seen := map[string]map[string]bool{
		"stdlib": {}, "third": {}, "internal": {},
	}
	for name, info := range api.Modules {
		parent := parentModule(name)
		if parent != "" {
			s.ModuleTree[parent] = append(s.ModuleTree[parent], name)
		}
		s.TotalLines += info.Lines

		for _, imp := range info.Imports {
			switch {
			case imp == "." || imp == api.Package.Name:
				seen["internal"][imp] = true
			case stdlibModules[imp]:
				seen["stdlib"][imp] = true
			default:
				seen["third"][imp] = true
			}
		}
	}
	for _, children := range s.ModuleTree {
		sort.Strings(children)
	}
	s.Dependencies = Dependencies{
		Stdlib:     sortedKeys(seen["stdlib"]),
		ThirdParty: sortedKeys(seen["third"]),
		Internal:   sortedKeys(seen["internal"]),
	}

	s.HasTests = dirExists(filepath.Join(projectRoot, "tests")) ||
		dirExists(filepath.Join(projectRoot, "test"))
	s.HasDocs = dirExists(filepath.Join(projectRoot, "docs"))
	return s
}

func parentModule(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
