// Package introspect statically extracts a Python package's public API using
// Tree-sitter. No interpreter is involved: everything comes from the AST.
package introspect

import "time"

// Kind classifies an API element.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindVariable Kind = "variable"
	KindModule   Kind = "module"
)

// Parameter is one entry of a function or method signature.
type Parameter struct {
	Name       string `json:"name"`
	Annotation string `json:"annotation,omitempty"`
	Default    string `json:"default,omitempty"`
}

// Element is a single introspected API element.
type Element struct {
	Name       string      `json:"name"`
	Kind       Kind        `json:"kind"`
	Module     string      `json:"module"`
	QualName   string      `json:"qualname"`
	Signature  string      `json:"signature,omitempty"`
	Docstring  string      `json:"docstring,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
	Returns    string      `json:"returns,omitempty"`
	Decorators []string    `json:"decorators,omitempty"`
	Bases      []string    `json:"bases,omitempty"`
	Async      bool        `json:"async,omitempty"`
	SourceFile string      `json:"source_file"`
	Line       int         `json:"line"`
	Public     bool        `json:"is_public"`
}

// HasTypeHints reports whether the element carries any annotation.
func (e Element) HasTypeHints() bool {
	if e.Returns != "" {
		return true
	}
	for _, p := range e.Parameters {
		if p.Annotation != "" {
			return true
		}
	}
	return false
}

// ModuleInfo summarizes one parsed module file.
type ModuleInfo struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Docstring string   `json:"docstring,omitempty"`
	All       []string `json:"all,omitempty"`
	Imports   []string `json:"imports,omitempty"`
	Lines     int      `json:"lines"`
	Classes   int      `json:"classes"`
	Functions int      `json:"functions"`
}

// PackageInfo carries extraction-level metadata.
type PackageInfo struct {
	Name            string    `json:"name"`
	SourceDirectory string    `json:"source_directory"`
	ModuleCount     int       `json:"module_count"`
	ElementCount    int       `json:"element_count"`
	PublicCount     int       `json:"public_count"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

// PackageAPI is the complete extraction result. Elements are keyed by
// qualified name (module.Class.method).
type PackageAPI struct {
	Package  PackageInfo           `json:"package_info"`
	Elements map[string]Element    `json:"elements"`
	Modules  map[string]ModuleInfo `json:"modules"`
}

// PublicElements returns the public subset of the API.
func (a PackageAPI) PublicElements() map[string]Element {
	out := make(map[string]Element)
	for name, el := range a.Elements {
		if el.Public {
			out[name] = el
		}
	}
	return out
}
