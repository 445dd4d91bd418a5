// Package validate checks documentation quality: completeness scoring,
// doctest validation, and help-text snapshot comparison.
package validate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ultrathink/internal/generate"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

// Score weights. Docstrings dominate; the rest split the remainder.
const (
	weightDocstring = 0.3
	weightSignature = 0.1
	weightStub      = 0.2
	weightExamples  = 0.2
	weightTypeHints = 0.2

	qualityBonusFactor = 0.1
	issuePenalty       = 0.05
	maxIssuePenalty    = 0.2
)

// ElementCheck is the completeness verdict for one element.
type ElementCheck struct {
	Element      string   `json:"element"`
	HasDocstring bool     `json:"has_docstring"`
	HasSignature bool     `json:"has_signature"`
	HasStub      bool     `json:"has_stub"`
	HasExamples  bool     `json:"has_examples"`
	HasTypeHints bool     `json:"has_type_hints"`
	Score        float64  `json:"score"`
	Issues       []string `json:"issues,omitempty"`
}

// CompletenessResult aggregates a package check.
type CompletenessResult struct {
	Package             string         `json:"package"`
	CheckedAt           time.Time      `json:"checked_at"`
	Threshold           float64        `json:"threshold"`
	Elements            []ElementCheck `json:"elements"`
	CompletenessPercent float64        `json:"completeness_percentage"`
	Passed              bool           `json:"passed"`
}

// CompletenessChecker scores the public API's documentation.
type CompletenessChecker struct {
	layout storage.Layout
	stubs  *generate.StubGenerator
	logger *zap.Logger
}

// NewCompletenessChecker wires a checker over the layout.
func NewCompletenessChecker(layout storage.Layout, logger *zap.Logger) *CompletenessChecker {
	return &CompletenessChecker{
		layout: layout,
		stubs:  generate.NewStubGenerator(layout, logger),
		logger: logger,
	}
}

// Check scores every public element and caches the result under
// validation_cache.
func (c *CompletenessChecker) Check(api introspect.PackageAPI, threshold float64) (CompletenessResult, error) {
	result := CompletenessResult{
		Package:   api.Package.Name,
		CheckedAt: time.Now().UTC(),
		Threshold: threshold,
	}

	public := api.PublicElements()
	var total float64
	for _, el := range public {
		check := c.checkElement(el)
		total += check.Score
		result.Elements = append(result.Elements, check)
	}
	sort.Slice(result.Elements, func(i, j int) bool {
		return result.Elements[i].Element < result.Elements[j].Element
	})

	if len(public) > 0 {
		result.CompletenessPercent = total / float64(len(public)) * 100
	} else {
		result.CompletenessPercent = 100
	}
	result.Passed = result.CompletenessPercent >= threshold*100

	cachePath := filepath.Join(c.layout.ValidationCacheDir(),
		fmt.Sprintf("completeness_check_%d.json", result.CheckedAt.Unix()))
	if err := storage.WriteJSON(cachePath, result); err != nil {
		return result, err
	}

	c.logger.Info("completeness check",
		zap.String("package", api.Package.Name),
		zap.Float64("percent", result.CompletenessPercent),
		zap.Bool("passed", result.Passed))
	return result, nil
}

// CheckSubset scores only the elements whose source file is in files,
// used by the pre-commit path.
func (c *CompletenessChecker) CheckSubset(api introspect.PackageAPI, threshold float64, files map[string]bool) (CompletenessResult, error) {
	filtered := introspect.PackageAPI{
		Package:  api.Package,
		Elements: map[string]introspect.Element{},
		Modules:  api.Modules,
	}
	for qual, el := range api.Elements {
		if files[el.SourceFile] {
			filtered.Elements[qual] = el
		}
	}
	return c.Check(filtered, threshold)
}

func (c *CompletenessChecker) checkElement(el introspect.Element) ElementCheck {
	check := ElementCheck{
		Element:      el.QualName,
		HasDocstring: strings.TrimSpace(el.Docstring) != "",
		HasSignature: el.Signature != "",
		HasStub:      c.stubs.HasStub(el),
		HasExamples:  hasExamples(el.Docstring),
		HasTypeHints: el.HasTypeHints() || el.Kind == introspect.KindClass,
	}

	score := 0.0
	if check.HasDocstring {
		score += weightDocstring
	} else {
		check.Issues = append(check.Issues, "missing docstring")
	}
	if check.HasSignature {
		score += weightSignature
	}
	if check.HasStub {
		score += weightStub
	} else {
		check.Issues = append(check.Issues, "missing stub page")
	}
	if check.HasExamples {
		score += weightExamples
	} else if el.Kind == introspect.KindFunction || el.Kind == introspect.KindMethod {
		check.Issues = append(check.Issues, "missing usage example")
	}
	if check.HasTypeHints {
		score += weightTypeHints
	} else {
		check.Issues = append(check.Issues, "missing type hints")
	}

	quality, issues := analyzeDocstring(el.Docstring)
	check.Issues = append(check.Issues, issues...)
	score += quality * qualityBonusFactor

	penalty := issuePenalty * float64(len(check.Issues))
	if penalty > maxIssuePenalty {
		penalty = maxIssuePenalty
	}
	score -= penalty

	check.Score = clamp01(score)
	return check
}

// analyzeDocstring grades an existing docstring and reports its problems.
// The returned quality is in [0, 1].
func analyzeDocstring(doc string) (float64, []string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return 0, nil
	}
	var issues []string
	quality := 0.4

	lines := strings.Split(doc, "\n")
	summary := strings.TrimSpace(lines[0])
	switch {
	case summary == "":
		issues = append(issues, "docstring has no summary line")
	case len(summary) > 100:
		issues = append(issues, "summary line exceeds 100 characters")
	default:
		quality += 0.2
	}

	if len(doc) < 20 {
		issues = append(issues, "docstring is too short")
	} else {
		quality += 0.2
	}

	lower := strings.ToLower(doc)
	if strings.Contains(lower, "todo") || strings.Contains(lower, "fixme") {
		issues = append(issues, "docstring contains TODO markers")
	}

	for _, section := range []string{"args:", "arguments:", "returns:", "raises:", "example"} {
		if strings.Contains(lower, section) {
			quality += 0.2
			break
		}
	}
	return clamp01(quality), issues
}

func hasExamples(doc string) bool {
	return strings.Contains(doc, ">>>") ||
		strings.Contains(strings.ToLower(doc), "example")
}

// RenderReport formats a completeness result as markdown.
func RenderReport(result CompletenessResult) string {
	var s strings.Builder
	fmt.Fprintf(&s, "# Documentation completeness: %s\n\n", result.Package)
	fmt.Fprintf(&s, "- Score: **%.1f%%** (threshold %.1f%%)\n", result.CompletenessPercent, result.Threshold*100)
	fmt.Fprintf(&s, "- Result: %s\n\n", passMark(result.Passed))

	var incomplete []ElementCheck
	for _, el := range result.Elements {
		if len(el.Issues) > 0 {
			incomplete = append(incomplete, el)
		}
	}
	if len(incomplete) == 0 {
		s.WriteString("All public elements are fully documented.\n")
		return s.String()
	}

	s.WriteString("## Elements needing attention\n\n")
	for _, el := range incomplete {
		fmt.Fprintf(&s, "- `%s` (%.0f%%): %s\n",
			el.Element, el.Score*100, strings.Join(el.Issues, "; "))
	}
	return s.String()
}

func passMark(ok bool) string {
	if ok {
		return "✓ passed"
	}
	return "✗ failed"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
