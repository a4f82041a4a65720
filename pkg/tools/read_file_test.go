package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vaultpilot/vaultpilot/pkg/vault"
)

func newToolVault(t *testing.T, notes map[string]string) vault.Store {
	t.Helper()
	root := t.TempDir()
	for path, content := range notes {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return vault.NewDirStore(root)
}

func TestReadFileWhole(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"note.md": "one\ntwo\nthree\n",
	})
	tool := NewReadFileTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":   "note.md",
		"explanation": "test",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if result.ForLLM != "one\ntwo\nthree\n" {
		t.Errorf("unexpected content: %q", result.ForLLM)
	}
}

func TestReadFileLineSlice(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"note.md": "one\ntwo\nthree\nfour\n",
	})
	tool := NewReadFileTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":   "note.md",
		"start_line":  float64(2),
		"end_line":    float64(3),
		"explanation": "test",
	})
	if result.ForLLM != "two\nthree" {
		t.Errorf("expected lines 2-3, got %q", result.ForLLM)
	}
}

func TestReadFileEntireNoteOverridesRange(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"note.md": "one\ntwo\n",
	})
	tool := NewReadFileTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":        "note.md",
		"start_line":       float64(2),
		"end_line":         float64(2),
		"read_entire_note": true,
		"explanation":      "test",
	})
	if result.ForLLM != "one\ntwo\n" {
		t.Errorf("expected whole note, got %q", result.ForLLM)
	}
}

func TestReadFileNotFoundIsObservation(t *testing.T) {
	store := newToolVault(t, nil)
	tool := NewReadFileTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":   "missing.md",
		"explanation": "test",
	})
	if result.IsError {
		t.Error("missing note should be a plain observation, not an error")
	}
	if !strings.Contains(result.ForLLM, "File not found: missing.md") {
		t.Errorf("expected not-found text, got %q", result.ForLLM)
	}
}

func TestReadFileRangeOutOfBounds(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"note.md": "one\n",
	})
	tool := NewReadFileTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":   "note.md",
		"start_line":  float64(5),
		"end_line":    float64(9),
		"explanation": "test",
	})
	if result.IsError {
		t.Error("out-of-range slice should be a plain observation")
	}
	if !strings.Contains(result.ForLLM, "out of range") {
		t.Errorf("expected out-of-range text, got %q", result.ForLLM)
	}
}
