// Package diffing compares API snapshots across versions, classifies the
// changes, and tracks versions in SQLite.
package diffing

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineOp marks how a line changed.
type LineOp int

const (
	LineEqual LineOp = iota
	LineAdded
	LineRemoved
)

// Line is one line of a text diff.
type Line struct {
	Op   LineOp `json:"op"`
	Text string `json:"text"`
}

// Hunk groups changed lines with surrounding context.
type Hunk struct {
	OldStart int    `json:"old_start"`
	NewStart int    `json:"new_start"`
	Lines    []Line `json:"lines"`
}

const hunkContext = 3

// DiffText produces line-level hunks between two texts, used for docstring
// and help-snapshot changes. Equal inputs yield no hunks.
func DiffText(old, new string) []Hunk {
	if old == new {
		return nil
	}
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var lines []Line
	for _, d := range diffs {
		op := LineEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = LineAdded
		case diffmatchpatch.DiffDelete:
			op = LineRemoved
		}
		for _, text := range splitLines(d.Text) {
			lines = append(lines, Line{Op: op, Text: text})
		}
	}
	return groupHunks(lines)
}

// RenderUnified formats hunks in a compact unified style for reports.
func RenderUnified(hunks []Hunk) string {
	var b strings.Builder
	for _, h := range hunks {
		for _, line := range h.Lines {
			switch line.Op {
			case LineAdded:
				b.WriteString("+ ")
			case LineRemoved:
				b.WriteString("- ")
			default:
				b.WriteString("  ")
			}
			b.WriteString(line.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// groupHunks collapses runs of equal lines, keeping hunkContext lines on each
// side of a change.
func groupHunks(lines []Line) []Hunk {
	var hunks []Hunk
	var current *Hunk
	oldLine, newLine := 1, 1
	equalRun := 0

	flush := func() {
		if current == nil {
			return
		}
		// Trim trailing context beyond the window.
		trailing := 0
		for i := len(current.Lines) - 1; i >= 0 && current.Lines[i].Op == LineEqual; i-- {
			trailing++
		}
		if trailing > hunkContext {
			current.Lines = current.Lines[:len(current.Lines)-(trailing-hunkContext)]
		}
		hunks = append(hunks, *current)
		current = nil
	}

	for i, line := range lines {
		switch line.Op {
		case LineEqual:
			if current != nil {
				current.Lines = append(current.Lines, line)
				equalRun++
				if equalRun > 2*hunkContext {
					flush()
					equalRun = 0
				}
			}
			oldLine++
			newLine++
		default:
			if current == nil {
				start := max(0, i-hunkContext)
				h := Hunk{OldStart: oldLine, NewStart: newLine}
				for j := start; j < i; j++ {
					h.Lines = append(h.Lines, lines[j])
					h.OldStart--
					h.NewStart--
				}
				current = &h
			}
			current.Lines = append(current.Lines, line)
			equalRun = 0
			if line.Op == LineAdded {
				newLine++
			} else {
				oldLine++
			}
		}
	}
	flush()
	return hunks
}
