package edit

import (
	"strings"
	"testing"
)

func TestDiffReplaceScenario(t *testing.T) {
	original := "one\ntwo\nthree\n"
	modified := "one\nTWO\nthree\n"

	diff := Diff(original, modified)
	want := []DiffLine{
		{Kind: Unchanged, Line: 1, Text: "one"},
		{Kind: Deleted, Line: 2, Text: "two"},
		{Kind: Inserted, Line: 2, Text: "TWO"},
		{Kind: Unchanged, Line: 3, Text: "three"},
	}

	if len(diff) != len(want) {
		t.Fatalf("diff has %d lines, want %d: %+v", len(diff), len(want), diff)
	}
	for i, w := range want {
		if diff[i] != w {
			t.Errorf("diff[%d] = %+v, want %+v", i, diff[i], w)
		}
	}
}

func TestDiffIdentical(t *testing.T) {
	text := "a\nb\n"
	for _, line := range Diff(text, text) {
		if line.Kind != Unchanged {
			t.Errorf("unexpected change: %+v", line)
		}
	}
}

// Reconstructing the modified document from the diff's unchanged+inserted
// lines must reproduce apply's output exactly.
func TestDiffRoundTrip(t *testing.T) {
	originalLines := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	ops := []Operation{
		{Kind: Replace, StartLine: 2, EndLine: 3, Content: "BETA\nGAMMA\n"},
		{Kind: Insert, StartLine: 5, Content: "zeta"},
	}
	if err := Validate(ops, len(originalLines)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	modifiedLines := Apply(originalLines, ops)

	diff := Diff(JoinLines(originalLines), JoinLines(modifiedLines))

	var rebuilt []string
	for _, line := range diff {
		if line.Kind == Unchanged || line.Kind == Inserted {
			rebuilt = append(rebuilt, line.Text)
		}
	}
	if strings.Join(rebuilt, "\n") != strings.Join(modifiedLines, "\n") {
		t.Errorf("rebuilt %v, want %v", rebuilt, modifiedLines)
	}

	// And the deleted+unchanged lines reproduce the original.
	var reverted []string
	for _, line := range diff {
		if line.Kind == Unchanged || line.Kind == Deleted {
			reverted = append(reverted, line.Text)
		}
	}
	if strings.Join(reverted, "\n") != strings.Join(originalLines, "\n") {
		t.Errorf("reverted %v, want %v", reverted, originalLines)
	}
}

func TestFormatDiffContextWindow(t *testing.T) {
	original := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10\n"
	modified := "l1\nl2\nl3\nl4\nCHANGED\nl6\nl7\nl8\nl9\nl10\n"

	got := FormatDiff(Diff(original, modified))
	want := strings.Join([]string{
		"  l3",
		"  l4",
		"- l5",
		"+ CHANGED",
		"  l6",
		"  l7",
	}, "\n")
	if got != want {
		t.Errorf("FormatDiff =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatDiffSeparatorBetweenRegions(t *testing.T) {
	original := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10\n"
	modified := "X1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nX10\n"

	got := FormatDiff(Diff(original, modified))
	if !strings.Contains(got, "...") {
		t.Errorf("expected ... separator between distant regions:\n%s", got)
	}
	if strings.Contains(got, "l5") || strings.Contains(got, "l6") {
		t.Errorf("middle lines should be hidden:\n%s", got)
	}
}
