// Package generate renders markdown documentation: per-element stubs, the
// full documentation build, and deprecation guides.
package generate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

// StubGenerator renders per-element markdown pages from templates kept under
// docs/ultrathink/config/templates.
type StubGenerator struct {
	layout storage.Layout
	logger *zap.Logger
}

// NewStubGenerator builds a generator over the layout.
func NewStubGenerator(layout storage.Layout, logger *zap.Logger) *StubGenerator {
	return &StubGenerator{layout: layout, logger: logger}
}

// stubData is the template context for one element page.
type stubData struct {
	Element     introspect.Element
	Package     string
	Example     string
	GeneratedAt string
}

var defaultTemplates = map[string]string{
	"class.md.tmpl": `# {{ .Element.QualName }}

**Class** in ` + "`{{ .Element.Module }}`" + `{{ if .Element.Bases }} (extends {{ range $i, $b := .Element.Bases }}{{ if $i }}, {{ end }}` + "`{{ $b }}`" + `{{ end }}){{ end }}

` + "```python\n{{ .Element.Signature }}\n```" + `

{{ if .Element.Docstring }}{{ .Element.Docstring }}{{ else }}*No documentation available.*{{ end }}

## Example

` + "```python\n{{ .Example }}\n```" + `

---
*Generated by ultrathink on {{ .GeneratedAt }}.*
`,
	"function.md.tmpl": `# {{ .Element.QualName }}

**Function** in ` + "`{{ .Element.Module }}`" + `

` + "```python\n{{ .Element.Signature }}\n```" + `

{{ if .Element.Docstring }}{{ .Element.Docstring }}{{ else }}*No documentation available.*{{ end }}
{{ if .Element.Parameters }}
## Parameters
{{ range .Element.Parameters }}
- ` + "`{{ .Name }}`" + `{{ if .Annotation }} ({{ .Annotation }}){{ end }}{{ if .Default }} — default ` + "`{{ .Default }}`" + `{{ end }}{{ end }}
{{ end }}{{ if .Element.Returns }}
## Returns

` + "`{{ .Element.Returns }}`" + `
{{ end }}
## Example

` + "```python\n{{ .Example }}\n```" + `

---
*Generated by ultrathink on {{ .GeneratedAt }}.*
`,
	"method.md.tmpl": `# {{ .Element.QualName }}

**Method** in ` + "`{{ .Element.Module }}`" + `

` + "```python\n{{ .Element.Signature }}\n```" + `

{{ if .Element.Docstring }}{{ .Element.Docstring }}{{ else }}*No documentation available.*{{ end }}

---
*Generated by ultrathink on {{ .GeneratedAt }}.*
`,
	"variable.md.tmpl": `# {{ .Element.QualName }}

**Variable** in ` + "`{{ .Element.Module }}`" + `

` + "```python\n{{ .Element.Signature }}\n```" + `

{{ if .Element.Docstring }}{{ .Element.Docstring }}{{ else }}*No documentation available.*{{ end }}
`,
	"module.md.tmpl": `# {{ .Element.QualName }}

**Module**

{{ if .Element.Docstring }}{{ .Element.Docstring }}{{ else }}*No documentation available.*{{ end }}
`,
	"default.md.tmpl": `# {{ .Element.QualName }}

` + "`{{ .Element.Signature }}`" + `

{{ .Element.Docstring }}
`,
}

// EnsureTemplates writes any missing default template.
func (g *StubGenerator) EnsureTemplates() error {
	dir := g.layout.TemplateDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}
	for name, body := range defaultTemplates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write template %s: %w", name, err)
		}
		g.logger.Debug("wrote default template", zap.String("template", name))
	}
	return nil
}

// Generate renders stubs for the named elements, or every public element
// when names is empty. Existing pages are skipped unless force is set.
// Returns the paths written.
func (g *StubGenerator) Generate(api introspect.PackageAPI, names []string, force bool) ([]string, error) {
	if err := g.EnsureTemplates(); err != nil {
		return nil, err
	}

	targets := map[string]introspect.Element{}
	if len(names) == 0 {
		targets = api.PublicElements()
	} else {
		for _, name := range names {
			el, ok := api.Elements[name]
			if !ok {
				el, ok = findByShortName(api, name)
			}
			if !ok {
				return nil, fmt.Errorf("unknown element %q", name)
			}
			targets[el.QualName] = el
		}
	}

	quals := make([]string, 0, len(targets))
	for q := range targets {
		quals = append(quals, q)
	}
	sort.Strings(quals)

	var written []string
	for _, qual := range quals {
		el := targets[qual]
		path := g.StubPath(el)
		if !force {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := g.render(api.Package.Name, el, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	g.logger.Info("generated stubs",
		zap.Int("written", len(written)),
		zap.Int("targets", len(targets)))
	return written, nil
}

// StubPath is the output page for an element.
func (g *StubGenerator) StubPath(el introspect.Element) string {
	name := fmt.Sprintf("%s_%s.md", safeName(el.QualName), el.Kind)
	return filepath.Join(g.layout.APIReferenceDir(), name)
}

// HasStub reports whether an element's page exists.
func (g *StubGenerator) HasStub(el introspect.Element) bool {
	_, err := os.Stat(g.StubPath(el))
	return err == nil
}

func (g *StubGenerator) render(packageName string, el introspect.Element, path string) error {
	tmplName := string(el.Kind) + ".md.tmpl"
	tmplPath := filepath.Join(g.layout.TemplateDir(), tmplName)
	if _, err := os.Stat(tmplPath); err != nil {
		tmplPath = filepath.Join(g.layout.TemplateDir(), "default.md.tmpl")
	}
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return fmt.Errorf("parse template for %s: %w", el.QualName, err)
	}

	data := stubData{
		Element:     el,
		Package:     packageName,
		Example:     examplePlaceholder(el),
		GeneratedAt: time.Now().UTC().Format("2006-01-02"),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", el.QualName, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write stub %s: %w", path, err)
	}
	return nil
}

// examplePlaceholder synthesizes a usage example from the signature. The
// trailing TODO line keeps placeholders out of doctest validation until a
// real example replaces them.
func examplePlaceholder(el introspect.Element) string {
	const todo = "# TODO: replace with a real example"
	switch el.Kind {
	case introspect.KindClass:
		return fmt.Sprintf(">>> from %s import %s\n>>> obj = %s(...)\n%s",
			el.Module, el.Name, el.Name, todo)
	case introspect.KindFunction:
		var args []string
		for _, p := range el.Parameters {
			if p.Default != "" || strings.HasPrefix(p.Name, "*") {
				continue
			}
			args = append(args, p.Name+"=...")
		}
		return fmt.Sprintf(">>> from %s import %s\n>>> %s(%s)\n%s",
			el.Module, el.Name, el.Name, strings.Join(args, ", "), todo)
	default:
		return fmt.Sprintf(">>> %s\n%s", el.QualName, todo)
	}
}

var unsafeNameRe = regexp.MustCompile(`[^\w\-.]`)

func safeName(s string) string {
	return unsafeNameRe.ReplaceAllString(s, "_")
}

func findByShortName(api introspect.PackageAPI, name string) (introspect.Element, bool) {
	for _, el := range api.Elements {
		if el.Name == name {
			return el, true
		}
	}
	return introspect.Element{}, false
}
