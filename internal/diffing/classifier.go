package diffing

import (
	"fmt"
	"sort"
	"strings"

	"ultrathink/internal/introspect"
)

// ChangeType labels what happened to an element between versions.
type ChangeType string

const (
	ChangeAddition     ChangeType = "addition"
	ChangeRemoval      ChangeType = "removal"
	ChangeModification ChangeType = "modification"
	ChangeDeprecation  ChangeType = "deprecation"
)

// Severity grades a change for review priority.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Impact states whether callers can break.
type Impact string

const (
	ImpactBreaking   Impact = "breaking"
	ImpactCompatible Impact = "compatible"
	ImpactUnknown    Impact = "unknown"
)

// Change is one classified API change.
type Change struct {
	Element       string     `json:"element"`
	Type          ChangeType `json:"type"`
	Severity      Severity   `json:"severity"`
	Impact        Impact     `json:"impact"`
	Detail        string     `json:"detail"`
	MigrationNote string     `json:"migration_note,omitempty"`
}

// Classify grades the differences between two versions of one element. A nil
// old means addition; a nil new means removal.
func Classify(qualName string, old, new *introspect.Element) []Change {
	switch {
	case old == nil && new == nil:
		return nil
	case old == nil:
		c := Change{
			Element:  qualName,
			Type:     ChangeAddition,
			Severity: SeverityInfo,
			Impact:   ImpactCompatible,
			Detail:   fmt.Sprintf("%s %s added", new.Kind, qualName),
		}
		if strings.Contains(strings.ToLower(new.Docstring), "deprecated") ||
			hasDeprecatedDecorator(*new) {
			c.Type = ChangeDeprecation
			c.Severity = SeverityLow
		}
		return []Change{c}
	case new == nil:
		return []Change{{
			Element:       qualName,
			Type:          ChangeRemoval,
			Severity:      SeverityCritical,
			Impact:        ImpactBreaking,
			Detail:        fmt.Sprintf("%s %s removed", old.Kind, qualName),
			MigrationNote: fmt.Sprintf("Remove all uses of %s or pin the previous release.", qualName),
		}}
	}
	return classifyModification(qualName, *old, *new)
}

func classifyModification(qualName string, old, new introspect.Element) []Change {
	var changes []Change
	add := func(sev Severity, impact Impact, detail, note string) {
		changes = append(changes, Change{
			Element:       qualName,
			Type:          ChangeModification,
			Severity:      sev,
			Impact:        impact,
			Detail:        detail,
			MigrationNote: note,
		})
	}

	if old.Kind != new.Kind {
		add(SeverityCritical, ImpactBreaking,
			fmt.Sprintf("kind changed from %s to %s", old.Kind, new.Kind),
			fmt.Sprintf("Audit every use of %s; its category changed.", qualName))
	}
	if old.Module != new.Module {
		add(SeverityMedium, ImpactBreaking,
			fmt.Sprintf("moved from %s to %s", old.Module, new.Module),
			fmt.Sprintf("Update imports to %s.", new.Module))
	}

	oldParams := paramIndex(old.Parameters)
	newParams := paramIndex(new.Parameters)
	for name, op := range oldParams {
		np, ok := newParams[name]
		if !ok {
			add(SeverityCritical, ImpactBreaking,
				fmt.Sprintf("parameter %q removed", name),
				fmt.Sprintf("Drop the %q argument from calls to %s.", name, qualName))
			continue
		}
		if op.Annotation != np.Annotation {
			add(SeverityHigh, ImpactBreaking,
				fmt.Sprintf("parameter %q annotation changed from %q to %q", name, op.Annotation, np.Annotation),
				fmt.Sprintf("Check values passed as %q against the new type.", name))
		}
		if op.Default != np.Default {
			add(SeverityLow, ImpactUnknown,
				fmt.Sprintf("parameter %q default changed from %q to %q", name, op.Default, np.Default), "")
		}
	}
	for name, np := range newParams {
		if _, ok := oldParams[name]; ok {
			continue
		}
		if np.Default == "" && !strings.HasPrefix(name, "*") {
			add(SeverityHigh, ImpactBreaking,
				fmt.Sprintf("required parameter %q added", name),
				fmt.Sprintf("Pass %q at every call site of %s.", name, qualName))
		} else {
			add(SeverityInfo, ImpactCompatible,
				fmt.Sprintf("optional parameter %q added", name), "")
		}
	}

	if old.Returns != new.Returns {
		add(SeverityHigh, ImpactBreaking,
			fmt.Sprintf("return annotation changed from %q to %q", old.Returns, new.Returns),
			fmt.Sprintf("Review code consuming the result of %s.", qualName))
	}

	if !hasDeprecatedDecorator(old) && hasDeprecatedDecorator(new) {
		changes = append(changes, Change{
			Element:       qualName,
			Type:          ChangeDeprecation,
			Severity:      SeverityMedium,
			Impact:        ImpactCompatible,
			Detail:        "marked deprecated",
			MigrationNote: fmt.Sprintf("Plan a migration away from %s before it is removed.", qualName),
		})
	}

	if len(changes) == 0 && old.Signature != new.Signature {
		add(SeverityMedium, ImpactUnknown, "signature text changed", "")
	}
	return changes
}

func paramIndex(params []introspect.Parameter) map[string]introspect.Parameter {
	out := make(map[string]introspect.Parameter, len(params))
	for _, p := range params {
		out[p.Name] = p
	}
	return out
}

func hasDeprecatedDecorator(el introspect.Element) bool {
	for _, d := range el.Decorators {
		if strings.Contains(strings.ToLower(d), "deprecated") {
			return true
		}
	}
	return false
}

// SuggestVersionBump maps a change set to a semver bump.
func SuggestVersionBump(changes []Change) string {
	bump := "patch"
	for _, c := range changes {
		if c.Impact == ImpactBreaking {
			return "major"
		}
		if c.Type == ChangeAddition || c.Type == ChangeDeprecation {
			bump = "minor"
		}
	}
	return bump
}

// SortChanges orders by severity (critical first), then element name.
func SortChanges(changes []Change) {
	rank := map[Severity]int{
		SeverityCritical: 0, SeverityHigh: 1, SeverityMedium: 2,
		SeverityLow: 3, SeverityInfo: 4,
	}
	sort.SliceStable(changes, func(i, j int) bool {
		if rank[changes[i].Severity] != rank[changes[j].Severity] {
			return rank[changes[i].Severity] < rank[changes[j].Severity]
		}
		return changes[i].Element < changes[j].Element
	})
}
