// Package ci evaluates documentation gates and wires them into pre-commit
// and GitHub Actions.
package ci

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ultrathink/internal/config"
	"ultrathink/internal/diffing"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
	"ultrathink/internal/validate"
)

// GateStatus is the verdict of one gate check.
type GateStatus string

const (
	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
	GateWarning GateStatus = "warning"
	GateSkipped GateStatus = "skipped"
	GateError   GateStatus = "error"
)

// GateCheck is one evaluated gate.
type GateCheck struct {
	Name    string         `json:"name"`
	Status  GateStatus     `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// GateResult is the outcome of a full gate evaluation.
type GateResult struct {
	EvaluatedAt time.Time   `json:"evaluated_at"`
	Checks      []GateCheck `json:"checks"`
	Passed      bool        `json:"passed"`
	Overridden  bool        `json:"overridden,omitempty"`
	OverrideID  string      `json:"override_id,omitempty"`
}

// Breaking-change tolerance levels.
const (
	ToleranceNone   = "none"
	ToleranceLow    = "low"    // at most 1
	ToleranceMedium = "medium" // at most 5
	ToleranceHigh   = "high"   // unlimited
)

// minDocstringLength is the bar below which a new API counts as undocumented.
const minDocstringLength = 20

// GateInputs carries whatever evidence is available; nil sections make the
// corresponding checks report skipped.
type GateInputs struct {
	Completeness *validate.CompletenessResult
	Doctests     *validate.DoctestResult
	Diff         *diffing.VersionDiff
	NewAPI       *introspect.PackageAPI
}

// Gatekeeper evaluates gates per the [tool.ultrathink.ci] configuration.
type Gatekeeper struct {
	layout    storage.Layout
	cfg       config.Config
	tolerance string
	logger    *zap.Logger
}

// NewGatekeeper wires a gatekeeper. tolerance defaults to none.
func NewGatekeeper(layout storage.Layout, cfg config.Config, tolerance string, logger *zap.Logger) *Gatekeeper {
	if tolerance == "" {
		tolerance = ToleranceNone
	}
	return &Gatekeeper{layout: layout, cfg: cfg, tolerance: tolerance, logger: logger}
}

// Evaluate runs every gate check. The result passes when no check failed.
func (g *Gatekeeper) Evaluate(in GateInputs) GateResult {
	result := GateResult{EvaluatedAt: time.Now().UTC()}
	result.Checks = append(result.Checks,
		g.checkCompleteness(in.Completeness),
		g.checkDoctests(in.Doctests),
		g.checkAPIChanges(in.Diff),
		g.checkBreakingChanges(in.Diff),
		g.checkNewAPIs(in.Diff, in.NewAPI),
	)

	result.Passed = true
	for _, c := range result.Checks {
		if c.Status == GateFailed || c.Status == GateError {
			result.Passed = false
		}
	}
	g.logger.Info("gate evaluation",
		zap.Bool("passed", result.Passed),
		zap.Int("checks", len(result.Checks)))
	return result
}

func (g *Gatekeeper) checkCompleteness(r *validate.CompletenessResult) GateCheck {
	check := GateCheck{Name: "completeness"}
	switch {
	case !g.cfg.CI.GateOnIncompleteDocs:
		check.Status = GateSkipped
		check.Message = "gate_on_incomplete_docs is disabled"
	case r == nil:
		check.Status = GateSkipped
		check.Message = "no completeness results supplied"
	case r.Passed:
		check.Status = GatePassed
		check.Message = fmt.Sprintf("documentation %.1f%% complete (threshold %.1f%%)",
			r.CompletenessPercent, r.Threshold*100)
	default:
		check.Status = GateFailed
		check.Message = fmt.Sprintf("documentation %.1f%% complete, below threshold %.1f%%",
			r.CompletenessPercent, r.Threshold*100)
		check.Details = map[string]any{"percent": r.CompletenessPercent}
	}
	return check
}

func (g *Gatekeeper) checkDoctests(r *validate.DoctestResult) GateCheck {
	check := GateCheck{Name: "doctest_validation"}
	switch {
	case !g.cfg.CI.GateOnFailedDoctests:
		check.Status = GateSkipped
		check.Message = "gate_on_failed_doctests is disabled"
	case r == nil:
		check.Status = GateSkipped
		check.Message = "no doctest results supplied"
	case r.Errors > 0:
		check.Status = GateError
		check.Message = fmt.Sprintf("%d doctest(s) could not run", r.Errors)
	case r.Failed > 0:
		check.Status = GateFailed
		check.Message = fmt.Sprintf("%d of %d doctest(s) failed", r.Failed, r.Total)
		check.Details = map[string]any{"failed": r.Failed, "total": r.Total}
	default:
		check.Status = GatePassed
		check.Message = fmt.Sprintf("%d doctest(s) passed", r.Passed)
	}
	return check
}

func (g *Gatekeeper) checkAPIChanges(diff *diffing.VersionDiff) GateCheck {
	check := GateCheck{Name: "api_changes"}
	if diff == nil {
		check.Status = GateSkipped
		check.Message = "no version comparison supplied"
		return check
	}
	total := diff.SignatureChanges.Summary.TotalChanges
	if total == 0 {
		check.Status = GatePassed
		check.Message = "no API changes"
		return check
	}
	check.Status = GateWarning
	check.Message = fmt.Sprintf("%d API change(s): %d added, %d removed, %d modified",
		total, len(diff.SignatureChanges.Added),
		len(diff.SignatureChanges.Removed), len(diff.SignatureChanges.Modified))
	return check
}

func (g *Gatekeeper) checkBreakingChanges(diff *diffing.VersionDiff) GateCheck {
	check := GateCheck{Name: "breaking_changes"}
	if diff == nil {
		check.Status = GateSkipped
		check.Message = "no version comparison supplied"
		return check
	}
	n := len(diff.BreakingChanges)
	limit, unlimited := toleranceLimit(g.tolerance)
	switch {
	case n == 0:
		check.Status = GatePassed
		check.Message = "no breaking changes"
	case unlimited || n <= limit:
		check.Status = GateWarning
		check.Message = fmt.Sprintf("%d breaking change(s) within %s tolerance", n, g.tolerance)
	default:
		check.Status = GateFailed
		check.Message = fmt.Sprintf("%d breaking change(s) exceed %s tolerance", n, g.tolerance)
		var elements []string
		for _, c := range diff.BreakingChanges {
			elements = append(elements, c.Element)
		}
		check.Details = map[string]any{"elements": elements}
	}
	return check
}

func (g *Gatekeeper) checkNewAPIs(diff *diffing.VersionDiff, api *introspect.PackageAPI) GateCheck {
	check := GateCheck{Name: "new_apis"}
	if diff == nil || api == nil {
		check.Status = GateSkipped
		check.Message = "no version comparison supplied"
		return check
	}
	var undocumented []string
	for _, name := range diff.SignatureChanges.Added {
		el, ok := api.Elements[name]
		if !ok || !el.Public {
			continue
		}
		if len(strings.TrimSpace(el.Docstring)) < minDocstringLength {
			undocumented = append(undocumented, name)
		}
	}
	if len(undocumented) > 0 {
		check.Status = GateFailed
		check.Message = fmt.Sprintf("%d new API(s) lack documentation", len(undocumented))
		check.Details = map[string]any{"elements": undocumented}
		return check
	}
	check.Status = GatePassed
	check.Message = fmt.Sprintf("%d new API(s), all documented", len(diff.SignatureChanges.Added))
	return check
}

func toleranceLimit(tolerance string) (int, bool) {
	switch tolerance {
	case ToleranceLow:
		return 1, false
	case ToleranceMedium:
		return 5, false
	case ToleranceHigh:
		return 0, true
	default:
		return 0, false
	}
}

// overrideRecord is the audit trail entry for a manual gate override.
type overrideRecord struct {
	ID         string     `json:"id"`
	Actor      string     `json:"actor"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	GateResult GateResult `json:"gate_result"`
}

// Override flips a failed result to passed and writes an audit record.
func (g *Gatekeeper) Override(result GateResult, actor, reason string) (GateResult, error) {
	if actor == "" || reason == "" {
		return result, fmt.Errorf("override requires an actor and a reason")
	}
	rec := overrideRecord{
		ID:         uuid.NewString(),
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
		GateResult: result,
	}
	path := filepath.Join(g.layout.OverrideDir(), fmt.Sprintf("override_%s.json", rec.ID))
	if err := storage.WriteJSON(path, rec); err != nil {
		return result, err
	}
	result.Passed = true
	result.Overridden = true
	result.OverrideID = rec.ID
	g.logger.Warn("gate result overridden",
		zap.String("actor", actor),
		zap.String("override_id", rec.ID))
	return result, nil
}

// RenderGateReport formats a gate result as a markdown PR report.
func RenderGateReport(result GateResult) string {
	var s strings.Builder
	s.WriteString("# Documentation gate report\n\n")
	fmt.Fprintf(&s, "Overall: %s\n\n", statusMark(overallStatus(result)))

	s.WriteString("| Check | Status | Message |\n|---|---|---|\n")
	for _, c := range result.Checks {
		fmt.Fprintf(&s, "| %s | %s | %s |\n", c.Name, statusMark(c.Status), c.Message)
	}

	if result.Overridden {
		fmt.Fprintf(&s, "\n> Gate failure overridden (audit record `%s`).\n", result.OverrideID)
	}
	fmt.Fprintf(&s, "\n*Evaluated at %s.*\n", result.EvaluatedAt.Format(time.RFC3339))
	return s.String()
}

func overallStatus(result GateResult) GateStatus {
	if result.Passed {
		return GatePassed
	}
	return GateFailed
}

func statusMark(s GateStatus) string {
	switch s {
	case GatePassed:
		return "✓ passed"
	case GateFailed:
		return "✗ failed"
	case GateWarning:
		return "⚠ warning"
	case GateError:
		return "✗ error"
	default:
		return "− skipped"
	}
}
