package introspect

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"
)

// Parser turns one Python source file into API elements.
type Parser struct {
	parser *sitter.Parser
	logger *zap.Logger
}

// NewParser builds a parser backed by the Tree-sitter Python grammar.
func NewParser(logger *zap.Logger) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p, logger: logger}
}

// ParseFile extracts the module info and elements of one file. module is the
// dotted module path the file maps to, relPath the project-relative path.
func (p *Parser) ParseFile(ctx context.Context, module, relPath string, content []byte) ([]Element, ModuleInfo, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, ModuleInfo{}, fmt.Errorf("parse %s: %w", relPath, err)
	}
	defer tree.Close()

	info := ModuleInfo{
		Name:  module,
		Path:  relPath,
		Lines: strings.Count(string(content), "\n") + 1,
	}

	root := tree.RootNode()
	var elements []Element
	p.walkModule(root, module, relPath, content, &elements, &info)

	info.Classes, info.Functions = 0, 0
	for _, el := range elements {
		switch el.Kind {
		case KindClass:
			info.Classes++
		case KindFunction:
			info.Functions++
		}
	}

	p.logger.Debug("parsed module",
		zap.String("module", module),
		zap.Int("elements", len(elements)))
	return elements, info, nil
}

func (p *Parser) walkModule(root *sitter.Node, module, relPath string, content []byte, elements *[]Element, info *ModuleInfo) {
	text := func(n *sitter.Node) string {
		return string(content[n.StartByte():n.EndByte()])
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "expression_statement":
			// Module docstring is the first statement when it is a string.
			if i == 0 {
				if s := child.NamedChild(0); s != nil && s.Type() == "string" {
					info.Docstring = cleanDocstring(text(s))
					continue
				}
			}
			p.parseModuleAssignment(child, module, relPath, content, elements, info)

		case "class_definition":
			p.parseClass(child, nil, module, relPath, content, elements)

		case "function_definition":
			if el := p.parseFunction(child, nil, "", module, relPath, content); el != nil {
				*elements = append(*elements, *el)
			}

		case "decorated_definition":
			p.parseDecorated(child, "", module, relPath, content, elements)

		case "import_statement", "import_from_statement":
			info.Imports = append(info.Imports, importRoots(child, text)...)

		case "if_statement":
			// TYPE_CHECKING blocks still contribute imports.
			p.collectImports(child, text, info)
		}
	}
}

func (p *Parser) collectImports(node *sitter.Node, text func(*sitter.Node) string, info *ModuleInfo) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "import_statement", "import_from_statement":
			info.Imports = append(info.Imports, importRoots(child, text)...)
		default:
			p.collectImports(child, text, info)
		}
	}
}

// parseModuleAssignment records module-level variables and the __all__ list.
func (p *Parser) parseModuleAssignment(stmt *sitter.Node, module, relPath string, content []byte, elements *[]Element, info *ModuleInfo) {
	assign := stmt.NamedChild(0)
	if assign == nil || assign.Type() != "assignment" {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	text := func(n *sitter.Node) string {
		return string(content[n.StartByte():n.EndByte()])
	}
	name := text(left)

	if name == "__all__" {
		if right := assign.ChildByFieldName("right"); right != nil {
			info.All = stringListItems(right, text)
		}
		return
	}

	annotation := ""
	if typ := assign.ChildByFieldName("type"); typ != nil {
		annotation = text(typ)
	}

	el := Element{
		Name:       name,
		Kind:       KindVariable,
		Module:     module,
		QualName:   module + "." + name,
		Signature:  collapseWhitespace(text(assign)),
		Returns:    annotation,
		SourceFile: relPath,
		Line:       int(assign.StartPoint().Row) + 1,
		Public:     isPublicName(name),
	}
	*elements = append(*elements, el)
}

func (p *Parser) parseDecorated(node *sitter.Node, parentClass, module, relPath string, content []byte, elements *[]Element) {
	text := func(n *sitter.Node) string {
		return string(content[n.StartByte():n.EndByte()])
	}

	var decorators []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "decorator" {
			dec := strings.TrimPrefix(strings.TrimSpace(text(child)), "@")
			if idx := strings.Index(dec, "("); idx > 0 {
				dec = dec[:idx]
			}
			decorators = append(decorators, dec)
		}
	}

	def := node.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Type() {
	case "function_definition":
		if el := p.parseFunction(def, decorators, parentClass, module, relPath, content); el != nil {
			el.Line = int(node.StartPoint().Row) + 1
			*elements = append(*elements, *el)
		}
	case "class_definition":
		p.parseClassWithDecorators(def, decorators, module, relPath, content, elements, int(node.StartPoint().Row)+1)
	}
}

func (p *Parser) parseClass(node *sitter.Node, decorators []string, module, relPath string, content []byte, elements *[]Element) {
	p.parseClassWithDecorators(node, decorators, module, relPath, content, elements, int(node.StartPoint().Row)+1)
}

func (p *Parser) parseClassWithDecorators(node *sitter.Node, decorators []string, module, relPath string, content []byte, elements *[]Element, line int) {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return
	}
	text := func(n *sitter.Node) string {
		return string(content[n.StartByte():n.EndByte()])
	}
	name := text(nameNode)

	el := Element{
		Name:       name,
		Kind:       KindClass,
		Module:     module,
		QualName:   module + "." + name,
		Signature:  headerSignature(node, body, content),
		Docstring:  firstDocstring(body, text),
		Decorators: decorators,
		SourceFile: relPath,
		Line:       line,
		Public:     isPublicName(name),
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		el.Bases = splitArgumentList(text(supers))
	}
	*elements = append(*elements, el)

	// Methods, one nesting level deep.
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			if m := p.parseFunction(child, nil, name, module, relPath, content); m != nil {
				*elements = append(*elements, *m)
			}
		case "decorated_definition":
			p.parseDecorated(child, name, module, relPath, content, elements)
		}
	}
}

func (p *Parser) parseFunction(node *sitter.Node, decorators []string, parentClass, module, relPath string, content []byte) *Element {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}
	text := func(n *sitter.Node) string {
		return string(content[n.StartByte():n.EndByte()])
	}
	name := text(nameNode)

	kind := KindFunction
	qual := module + "." + name
	if parentClass != "" {
		kind = KindMethod
		qual = module + "." + parentClass + "." + name
	}

	sig := headerSignature(node, body, content)
	el := &Element{
		Name:       name,
		Kind:       kind,
		Module:     module,
		QualName:   qual,
		Signature:  sig,
		Docstring:  firstDocstring(body, text),
		Decorators: decorators,
		Async:      strings.HasPrefix(sig, "async "),
		SourceFile: relPath,
		Line:       int(node.StartPoint().Row) + 1,
		Public:     isPublicName(name),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		el.Parameters = parseParameters(params, text)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		el.Returns = text(ret)
	}
	return el
}

// parseParameters flattens a parameters node into Parameter values.
func parseParameters(params *sitter.Node, text func(*sitter.Node) string) []Parameter {
	var out []Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		switch child.Type() {
		case "identifier":
			out = append(out, Parameter{Name: text(child)})
		case "typed_parameter":
			p := Parameter{}
			if n := child.NamedChild(0); n != nil {
				p.Name = text(n)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				p.Annotation = text(t)
			}
			out = append(out, p)
		case "default_parameter":
			p := Parameter{}
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = text(n)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = text(v)
			}
			out = append(out, p)
		case "typed_default_parameter":
			p := Parameter{}
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = text(n)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				p.Annotation = text(t)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = text(v)
			}
			out = append(out, p)
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, Parameter{Name: text(child)})
		}
	}
	return out
}

// headerSignature renders the definition header (through the colon before the
// body) as a single line.
func headerSignature(node, body *sitter.Node, content []byte) string {
	header := string(content[node.StartByte():body.StartByte()])
	header = strings.TrimSpace(header)
	header = strings.TrimSuffix(header, ":")
	return collapseWhitespace(header)
}

// firstDocstring returns the cleaned docstring of a block, if any.
func firstDocstring(body *sitter.Node, text func(*sitter.Node) string) string {
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" {
		return ""
	}
	s := first.NamedChild(0)
	if s == nil || s.Type() != "string" {
		return ""
	}
	return cleanDocstring(text(s))
}

// importRoots extracts the top-level module names an import statement pulls in.
func importRoots(node *sitter.Node, text func(*sitter.Node) string) []string {
	var roots []string
	add := func(dotted string) {
		dotted = strings.TrimSpace(dotted)
		if dotted == "" {
			return
		}
		if idx := strings.Index(dotted, "."); idx > 0 {
			dotted = dotted[:idx]
		}
		roots = append(roots, dotted)
	}

	switch node.Type() {
	case "import_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				add(text(child))
			case "aliased_import":
				if n := child.ChildByFieldName("name"); n != nil {
					add(text(n))
				}
			}
		}
	case "import_from_statement":
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			if mod.Type() == "relative_import" {
				roots = append(roots, ".")
			} else {
				add(text(mod))
			}
		}
	}
	return roots
}

// stringListItems pulls string literals out of a list/tuple expression.
func stringListItems(node *sitter.Node, text func(*sitter.Node) string) []string {
	var items []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "string" {
			items = append(items, stripStringLiteral(text(child)))
		}
	}
	return items
}

// splitArgumentList splits "(A, B, metaclass=M)" into top-level entries.
func splitArgumentList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				if part := strings.TrimSpace(s[start:i]); part != "" {
					out = append(out, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

// isPublicName follows the Python naming convention: a leading underscore
// means private, dunders included.
func isPublicName(name string) bool {
	return !strings.HasPrefix(name, "_")
}

// cleanDocstring strips quoting and dedents the body, in the spirit of
// inspect.cleandoc.
func cleanDocstring(raw string) string {
	s := stripStringLiteral(raw)
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		return strings.TrimSpace(s)
	}
	// Common indent of the continuation lines.
	indent := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		n := len(line) - len(trimmed)
		if indent < 0 || n < indent {
			indent = n
		}
	}
	out := []string{strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		if indent > 0 && len(line) >= indent {
			line = line[indent:]
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// stripStringLiteral removes string prefixes and quotes from a literal.
func stripStringLiteral(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
