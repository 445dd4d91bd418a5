package introspect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Sensitivity controls how much of an element feeds its signature hash.
type Sensitivity string

const (
	// SensitivityStrict hashes everything observable about the element.
	SensitivityStrict Sensitivity = "strict"
	// SensitivityModerate hashes the shape callers depend on: name, kind,
	// parameters with annotations, and the return annotation.
	SensitivityModerate Sensitivity = "moderate"
	// SensitivityRelaxed hashes only name, kind, and arity.
	SensitivityRelaxed Sensitivity = "relaxed"
)

// Hasher produces stable signature hashes for API elements.
type Hasher struct {
	Sensitivity Sensitivity
}

// NewHasher returns a hasher at the given sensitivity, defaulting to moderate.
func NewHasher(s Sensitivity) Hasher {
	if s == "" {
		s = SensitivityModerate
	}
	return Hasher{Sensitivity: s}
}

// Hash returns the hex SHA-256 of the element's normalized form. Maps marshal
// with sorted keys, so equal inputs hash equally.
func (h Hasher) Hash(el Element) (string, error) {
	norm := h.normalize(el)
	data, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("normalize %s: %w", el.QualName, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashAll hashes every element of the API, keyed by qualified name.
func (h Hasher) HashAll(api PackageAPI) (map[string]string, error) {
	out := make(map[string]string, len(api.Elements))
	for qual, el := range api.Elements {
		hash, err := h.Hash(el)
		if err != nil {
			return nil, err
		}
		out[qual] = hash
	}
	return out, nil
}

func (h Hasher) normalize(el Element) map[string]any {
	switch h.Sensitivity {
	case SensitivityRelaxed:
		return map[string]any{
			"name":  el.Name,
			"kind":  string(el.Kind),
			"arity": len(el.Parameters),
		}
	case SensitivityStrict:
		return map[string]any{
			"name":       el.Name,
			"kind":       string(el.Kind),
			"module":     el.Module,
			"signature":  el.Signature,
			"parameters": normalizeParams(el.Parameters, true),
			"returns":    el.Returns,
			"decorators": el.Decorators,
			"bases":      el.Bases,
			"async":      el.Async,
			"docstring":  el.Docstring,
		}
	default:
		return map[string]any{
			"name":       el.Name,
			"kind":       string(el.Kind),
			"parameters": normalizeParams(el.Parameters, false),
			"returns":    el.Returns,
		}
	}
}

func normalizeParams(params []Parameter, includeDefaults bool) []map[string]string {
	out := make([]map[string]string, 0, len(params))
	for _, p := range params {
		m := map[string]string{"name": p.Name, "annotation": p.Annotation}
		if includeDefaults {
			m["default"] = p.Default
		}
		out = append(out, m)
	}
	return out
}

// SignatureComparison is the outcome of comparing two hash sets.
type SignatureComparison struct {
	Added     []string          `json:"added"`
	Removed   []string          `json:"removed"`
	Modified  []string          `json:"modified"`
	Unchanged []string          `json:"unchanged"`
	Summary   ComparisonSummary `json:"summary"`
}

// ComparisonSummary aggregates a signature comparison. Removals and
// modifications count as breaking.
type ComparisonSummary struct {
	TotalChanges       int `json:"total_changes"`
	BreakingChanges    int `json:"breaking_changes"`
	NonBreakingChanges int `json:"non_breaking_changes"`
}

// CompareSignatures diffs two qualified-name → hash maps. All slices come
// back sorted.
func CompareSignatures(old, new map[string]string) SignatureComparison {
	var cmp SignatureComparison
	for name, oldHash := range old {
		newHash, ok := new[name]
		switch {
		case !ok:
			cmp.Removed = append(cmp.Removed, name)
		case oldHash != newHash:
			cmp.Modified = append(cmp.Modified, name)
		default:
			cmp.Unchanged = append(cmp.Unchanged, name)
		}
	}
	for name := range new {
		if _, ok := old[name]; !ok {
			cmp.Added = append(cmp.Added, name)
		}
	}
	sort.Strings(cmp.Added)
	sort.Strings(cmp.Removed)
	sort.Strings(cmp.Modified)
	sort.Strings(cmp.Unchanged)

	cmp.Summary = ComparisonSummary{
		TotalChanges:       len(cmp.Added) + len(cmp.Removed) + len(cmp.Modified),
		BreakingChanges:    len(cmp.Removed) + len(cmp.Modified),
		NonBreakingChanges: len(cmp.Added),
	}
	return cmp
}
