package validate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ultrathink/internal/config"
	"ultrathink/internal/introspect"
	"ultrathink/internal/storage"
)

// Example is one extracted doctest session.
type Example struct {
	Origin string `json:"origin"` // qualified name or doc file path
	Line   int    `json:"line"`
	Source string `json:"source"`
	Skip   bool   `json:"skip,omitempty"`
}

// ExampleResult is the verdict for one example.
type ExampleResult struct {
	Example Example `json:"example"`
	Status  string  `json:"status"` // passed, failed, error, skipped
	Output  string  `json:"output,omitempty"`
}

// DoctestResult aggregates a validation run.
type DoctestResult struct {
	Mode      string          `json:"mode"`
	CheckedAt time.Time       `json:"checked_at"`
	Total     int             `json:"total_tests"`
	Passed    int             `json:"passed_tests"`
	Failed    int             `json:"failed_tests"`
	Errors    int             `json:"error_tests"`
	Skipped   int             `json:"skipped_tests"`
	Results   []ExampleResult `json:"results,omitempty"`
}

// Ok reports whether every runnable example passed.
func (r DoctestResult) Ok() bool {
	return r.Failed == 0 && r.Errors == 0
}

// DoctestValidator extracts and checks example sessions. In execute mode the
// sessions run under python's doctest module; in static mode only the session
// structure is verified.
type DoctestValidator struct {
	layout storage.Layout
	mode   string
	python string
	logger *zap.Logger
}

// NewDoctestValidator builds a validator for the given doctest mode.
func NewDoctestValidator(layout storage.Layout, mode string, logger *zap.Logger) *DoctestValidator {
	return &DoctestValidator{layout: layout, mode: mode, logger: logger}
}

// ValidatePackage checks every docstring example in the API plus the python
// fences of the generated docs (recursively, including api_reference pages),
// and caches the result.
func (v *DoctestValidator) ValidatePackage(ctx context.Context, api introspect.PackageAPI) (DoctestResult, error) {
	examples := ExtractFromAPI(api)

	docsRoot := v.layout.GeneratedDocsDir()
	err := filepath.WalkDir(docsRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		origin, err := filepath.Rel(docsRoot, path)
		if err != nil {
			origin = filepath.Base(path)
		}
		examples = append(examples, ExtractFromMarkdown(origin, string(content))...)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return DoctestResult{}, err
	}

	result := v.Validate(ctx, examples)

	cachePath := filepath.Join(v.layout.ValidationCacheDir(),
		fmt.Sprintf("doctest_check_%d.json", result.CheckedAt.Unix()))
	if err := storage.WriteJSON(cachePath, result); err != nil {
		return result, err
	}
	return result, nil
}

// Validate checks a set of examples according to the configured mode.
func (v *DoctestValidator) Validate(ctx context.Context, examples []Example) DoctestResult {
	result := DoctestResult{Mode: v.mode, CheckedAt: time.Now().UTC()}

	for _, ex := range examples {
		result.Total++
		var res ExampleResult
		switch {
		case ex.Skip:
			res = ExampleResult{Example: ex, Status: "skipped"}
			result.Skipped++
		case v.mode == config.DoctestModeStatic:
			res = validateStatic(ex)
		default:
			res = v.execute(ctx, ex)
		}
		switch res.Status {
		case "passed":
			result.Passed++
		case "failed":
			result.Failed++
		case "error":
			result.Errors++
		}
		result.Results = append(result.Results, res)
	}

	v.logger.Info("doctest validation",
		zap.String("mode", v.mode),
		zap.Int("total", result.Total),
		zap.Int("passed", result.Passed),
		zap.Int("failed", result.Failed),
		zap.Int("errors", result.Errors))
	return result
}

// execute runs one session through `python -m doctest`.
func (v *DoctestValidator) execute(ctx context.Context, ex Example) ExampleResult {
	python, err := v.pythonPath()
	if err != nil {
		return ExampleResult{Example: ex, Status: "error", Output: err.Error()}
	}

	tmp, err := os.CreateTemp("", "ultrathink-doctest-*.txt")
	if err != nil {
		return ExampleResult{Example: ex, Status: "error", Output: err.Error()}
	}
	defer os.Remove(tmp.Name())
	// doctest accepts text files of bare sessions.
	if _, err := tmp.WriteString(ex.Source + "\n"); err != nil {
		tmp.Close()
		return ExampleResult{Example: ex, Status: "error", Output: err.Error()}
	}
	tmp.Close()

	cmd := exec.CommandContext(ctx, python, "-m", "doctest",
		"-o", "ELLIPSIS", "-o", "NORMALIZE_WHITESPACE", "-o", "IGNORE_EXCEPTION_DETAIL",
		tmp.Name())
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ExampleResult{Example: ex, Status: "error", Output: ctx.Err().Error()}
		}
		return ExampleResult{Example: ex, Status: "failed", Output: string(out)}
	}
	return ExampleResult{Example: ex, Status: "passed"}
}

func (v *DoctestValidator) pythonPath() (string, error) {
	if v.python != "" {
		return v.python, nil
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			v.python = path
			return path, nil
		}
	}
	return "", fmt.Errorf("no python interpreter on PATH; set doctest_mode = %q", config.DoctestModeStatic)
}

// validateStatic checks session structure without running it: prompts must
// carry statements and continuations must follow a prompt.
func validateStatic(ex Example) ExampleResult {
	lines := strings.Split(ex.Source, "\n")
	sawPrompt := false
	lastWasPrompt := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, ">>>"):
			stmt := strings.TrimSpace(strings.TrimPrefix(trimmed, ">>>"))
			if stmt == "" {
				return ExampleResult{Example: ex, Status: "failed", Output: "empty prompt line"}
			}
			sawPrompt = true
			lastWasPrompt = true
		case strings.HasPrefix(trimmed, "..."):
			if !lastWasPrompt {
				return ExampleResult{Example: ex, Status: "failed", Output: "continuation without prompt"}
			}
		default:
			lastWasPrompt = false
		}
	}
	if !sawPrompt {
		return ExampleResult{Example: ex, Status: "failed", Output: "no interactive prompt found"}
	}
	return ExampleResult{Example: ex, Status: "passed"}
}

// ExtractFromAPI pulls doctest sessions out of every docstring.
func ExtractFromAPI(api introspect.PackageAPI) []Example {
	var quals []string
	for qual := range api.Elements {
		quals = append(quals, qual)
	}
	sort.Strings(quals)

	var out []Example
	for _, qual := range quals {
		el := api.Elements[qual]
		for _, ex := range extractSessions(el.Docstring) {
			ex.Origin = qual
			ex.Line += el.Line
			out = append(out, ex)
		}
	}
	return out
}

var pythonFenceRe = regexp.MustCompile("(?s)```python\n(.*?)```")

// ExtractFromMarkdown pulls doctest sessions from ```python fences.
func ExtractFromMarkdown(origin, content string) []Example {
	var out []Example
	for _, m := range pythonFenceRe.FindAllStringSubmatchIndex(content, -1) {
		block := content[m[2]:m[3]]
		if !strings.Contains(block, ">>>") {
			continue
		}
		line := strings.Count(content[:m[0]], "\n") + 1
		for _, ex := range extractSessions(block) {
			ex.Origin = origin
			ex.Line += line
			out = append(out, ex)
		}
	}
	return out
}

// extractSessions splits a text into doctest sessions: a prompt line plus its
// continuations and expected output, ended by a blank line or non-session text.
func extractSessions(text string) []Example {
	if !strings.Contains(text, ">>>") {
		return nil
	}
	var out []Example
	lines := strings.Split(text, "\n")

	var current []string
	startLine := 0
	inSession := false
	flush := func() {
		if !inSession {
			return
		}
		source := strings.Join(current, "\n")
		out = append(out, Example{
			Line:   startLine,
			Source: dedent(source),
			Skip:   shouldSkip(source),
		})
		current = nil
		inSession = false
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, ">>>"):
			if !inSession {
				inSession = true
				startLine = i
			}
			current = append(current, line)
		case inSession && trimmed == "":
			flush()
		case inSession:
			current = append(current, line)
		}
	}
	flush()
	return out
}

var skipMarkers = []string{"# doctest: +SKIP", "# TODO", "# FIXME"}

func shouldSkip(source string) bool {
	for _, m := range skipMarkers {
		if strings.Contains(source, m) {
			return true
		}
	}
	// A statement with an ellipsis placeholder marks incomplete example code.
	runnable := false
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, ">>>") {
			continue
		}
		stmt := strings.TrimSpace(strings.TrimPrefix(trimmed, ">>>"))
		if stmt == "" {
			continue
		}
		if strings.Contains(stmt, "...") {
			return true
		}
		runnable = true
	}
	return !runnable
}

func dedent(s string) string {
	lines := strings.Split(s, "\n")
	indent := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		n := len(line) - len(trimmed)
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return s
	}
	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		}
	}
	return strings.Join(lines, "\n")
}
