// Package edit validates and applies line-based edit operations against a
// note's text, and renders the resulting diff. Everything here is pure and
// deterministic; the vault is never touched.
package edit

import (
	"fmt"
	"sort"
	"strings"
)

// Kind enumerates the recognized edit operations.
type Kind string

const (
	Insert  Kind = "insert"
	Delete  Kind = "delete"
	Replace Kind = "replace"
)

// Operation is one line-based edit instruction. Lines are 1-indexed.
// EndLine is required for delete/replace; Content for insert/replace.
// Insert splices its content after StartLine.
type Operation struct {
	Kind        Kind   `json:"type"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line,omitempty"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
}

// affectedRange is the inclusive line range an operation touches. For insert
// that is the single line immediately after StartLine; for delete/replace it
// is [StartLine, EndLine].
func (op Operation) affectedRange() (int, int) {
	if op.Kind == Insert {
		return op.StartLine + 1, op.StartLine + 1
	}
	return op.StartLine, op.EndLine
}

// Validate checks every operation against the document's line count and the
// batch for overlapping affected ranges. It returns nil when the whole batch
// is applicable; the error names the first offending operation.
func Validate(ops []Operation, totalLines int) error {
	for i, op := range ops {
		if err := validateOne(op, totalLines); err != nil {
			return fmt.Errorf("edit %d: %w", i+1, err)
		}
	}

	for i := 0; i < len(ops); i++ {
		for j := i + 1; j < len(ops); j++ {
			iLo, iHi := ops[i].affectedRange()
			jLo, jHi := ops[j].affectedRange()
			if iLo <= jHi && jLo <= iHi {
				return fmt.Errorf(
					"edits %d and %d overlap: lines %d-%d conflict with lines %d-%d",
					i+1, j+1, iLo, iHi, jLo, jHi,
				)
			}
		}
	}
	return nil
}

func validateOne(op Operation, totalLines int) error {
	switch op.Kind {
	case Insert, Delete, Replace:
	default:
		return fmt.Errorf("unknown operation type %q", op.Kind)
	}

	if op.StartLine < 1 {
		return fmt.Errorf("start_line must be >= 1, got %d", op.StartLine)
	}

	if op.Kind == Delete || op.Kind == Replace {
		if op.EndLine < op.StartLine {
			return fmt.Errorf("end_line %d is before start_line %d", op.EndLine, op.StartLine)
		}
		if op.EndLine > totalLines {
			return fmt.Errorf("end_line %d is past the end of the note (%d lines)", op.EndLine, totalLines)
		}
	}

	if op.Kind == Insert && op.StartLine > totalLines+1 {
		return fmt.Errorf("start_line %d is past the end of the note (%d lines)", op.StartLine, totalLines)
	}

	if (op.Kind == Insert || op.Kind == Replace) && op.Content == "" {
		return fmt.Errorf("%s requires content", op.Kind)
	}

	return nil
}

// Apply executes a validated batch against the note's lines. Operations run
// in descending start-line order so earlier operations cannot shift the line
// numbers later ones refer to.
func Apply(lines []string, ops []Operation) []string {
	sorted := make([]Operation, len(ops))
	copy(sorted, ops)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartLine > sorted[j].StartLine
	})

	out := make([]string, len(lines))
	copy(out, lines)

	for _, op := range sorted {
		switch op.Kind {
		case Insert:
			at := op.StartLine
			if at > len(out) {
				at = len(out)
			}
			out = splice(out, at, at, SplitLines(op.Content))
		case Delete:
			out = splice(out, op.StartLine-1, op.EndLine, nil)
		case Replace:
			out = splice(out, op.StartLine-1, op.EndLine, SplitLines(op.Content))
		}
	}
	return out
}

// splice replaces out[from:to] with insert.
func splice(out []string, from, to int, insert []string) []string {
	result := make([]string, 0, len(out)-(to-from)+len(insert))
	result = append(result, out[:from]...)
	result = append(result, insert...)
	result = append(result, out[to:]...)
	return result
}

// SplitLines splits text into lines, treating a trailing newline as a line
// terminator rather than the start of an empty final line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// JoinLines is the inverse of SplitLines for non-empty documents.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
