package edit

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffKind classifies one diff line.
type DiffKind string

const (
	Unchanged DiffKind = "unchanged"
	Deleted   DiffKind = "deleted"
	Inserted  DiffKind = "inserted"
)

// DiffLine is one line of a whole-document diff. Line is the line number in
// the line's own coordinate space: original numbering for unchanged and
// deleted lines, new numbering for inserted lines.
type DiffLine struct {
	Kind DiffKind
	Line int
	Text string
}

// Diff computes a line-granularity diff between two versions of a note.
// It runs the diff in line mode, which gives longest-common-subsequence
// quality matching on lines rather than characters.
func Diff(original, modified string) []DiffLine {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(original, modified)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []DiffLine
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		for _, text := range chunkLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				out = append(out, DiffLine{Kind: Unchanged, Line: oldLine, Text: text})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				out = append(out, DiffLine{Kind: Deleted, Line: oldLine, Text: text})
				oldLine++
			case diffmatchpatch.DiffInsert:
				out = append(out, DiffLine{Kind: Inserted, Line: newLine, Text: text})
				newLine++
			}
		}
	}
	return out
}

func chunkLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// contextLines is the number of unchanged lines shown on each side of a
// change in the rendered preview.
const contextLines = 2

// FormatDiff renders the diff for display: changed lines plus two lines of
// surrounding context, with "..." separating non-adjacent regions. Deleted
// lines are prefixed "-", inserted "+", context with two spaces.
func FormatDiff(diff []DiffLine) string {
	show := make([]bool, len(diff))
	for i, line := range diff {
		if line.Kind == Unchanged {
			continue
		}
		lo := max(0, i-contextLines)
		hi := min(len(diff)-1, i+contextLines)
		for j := lo; j <= hi; j++ {
			show[j] = true
		}
	}

	var b strings.Builder
	shownAny := false
	lastShown := -1
	for i, line := range diff {
		if !show[i] {
			continue
		}
		if shownAny && i != lastShown+1 {
			b.WriteString("...\n")
		}
		switch line.Kind {
		case Deleted:
			b.WriteString("- ")
		case Inserted:
			b.WriteString("+ ")
		default:
			b.WriteString("  ")
		}
		b.WriteString(line.Text)
		b.WriteString("\n")
		shownAny = true
		lastShown = i
	}
	return strings.TrimSuffix(b.String(), "\n")
}
