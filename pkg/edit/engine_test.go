package edit

import (
	"strings"
	"testing"
)

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		name       string
		op         Operation
		totalLines int
		wantErr    bool
	}{
		{"insert after last line", Operation{Kind: Insert, StartLine: 3, Content: "x"}, 3, false},
		{"insert append position", Operation{Kind: Insert, StartLine: 4, Content: "x"}, 3, false},
		{"insert past append position", Operation{Kind: Insert, StartLine: 5, Content: "x"}, 3, true},
		{"insert missing content", Operation{Kind: Insert, StartLine: 1}, 3, true},
		{"replace in bounds", Operation{Kind: Replace, StartLine: 2, EndLine: 3, Content: "x"}, 3, false},
		{"replace end before start", Operation{Kind: Replace, StartLine: 3, EndLine: 2, Content: "x"}, 3, true},
		{"replace past end", Operation{Kind: Replace, StartLine: 2, EndLine: 4, Content: "x"}, 3, true},
		{"replace missing content", Operation{Kind: Replace, StartLine: 1, EndLine: 1}, 3, true},
		{"delete in bounds", Operation{Kind: Delete, StartLine: 1, EndLine: 3}, 3, false},
		{"delete zero start", Operation{Kind: Delete, StartLine: 0, EndLine: 1}, 3, true},
		{"unknown kind", Operation{Kind: "append", StartLine: 1}, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]Operation{tt.op}, tt.totalLines)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOverlap(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Operation
		wantErr bool
	}{
		{
			"disjoint replaces pass",
			Operation{Kind: Replace, StartLine: 1, EndLine: 2, Content: "x"},
			Operation{Kind: Replace, StartLine: 4, EndLine: 5, Content: "y"},
			false,
		},
		{
			"sharing one line fails",
			Operation{Kind: Replace, StartLine: 1, EndLine: 3, Content: "x"},
			Operation{Kind: Delete, StartLine: 3, EndLine: 5},
			true,
		},
		{
			"insert into deleted range fails",
			Operation{Kind: Insert, StartLine: 2, Content: "x"}, // affects line 3
			Operation{Kind: Delete, StartLine: 3, EndLine: 4},
			true,
		},
		{
			"insert adjacent to delete passes",
			Operation{Kind: Insert, StartLine: 1, Content: "x"}, // affects line 2
			Operation{Kind: Delete, StartLine: 3, EndLine: 4},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]Operation{tt.a, tt.b}, 10)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "overlap") {
				t.Errorf("overlap error should name the conflict, got %v", err)
			}
		})
	}
}

func TestApplyReplaceScenario(t *testing.T) {
	lines := []string{"one", "two", "three"}
	ops := []Operation{{Kind: Replace, StartLine: 2, EndLine: 2, Content: "TWO"}}

	if err := Validate(ops, len(lines)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got := Apply(lines, ops)
	want := []string{"one", "TWO", "three"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestApplyDescendingOrderPreservesLineNumbers(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e"}
	// Stated line numbers must hold even though the insert at line 1 would
	// shift everything below it if applied first.
	ops := []Operation{
		{Kind: Insert, StartLine: 1, Content: "after-a"},
		{Kind: Delete, StartLine: 4, EndLine: 4},
		{Kind: Replace, StartLine: 5, EndLine: 5, Content: "E"},
	}

	if err := Validate(ops, len(lines)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got := Apply(lines, ops)
	want := []string{"a", "after-a", "b", "c", "E"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestApplyInsertAppends(t *testing.T) {
	lines := []string{"one", "two"}
	ops := []Operation{{Kind: Insert, StartLine: 3, Content: "three"}}

	if err := Validate(ops, len(lines)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got := Apply(lines, ops)
	if len(got) != 3 || got[2] != "three" {
		t.Errorf("Apply = %v", got)
	}
}

func TestApplyMultiLineContent(t *testing.T) {
	lines := []string{"head", "old", "tail"}
	ops := []Operation{{Kind: Replace, StartLine: 2, EndLine: 2, Content: "new-1\nnew-2\n"}}

	if err := Validate(ops, len(lines)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got := Apply(lines, ops)
	want := []string{"head", "new-1", "new-2", "tail"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}
