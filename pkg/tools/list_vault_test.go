package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestListVaultRoot(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"a.md":        "a",
		"folder/b.md": "b",
	})
	tool := NewListVaultTool(store)

	for _, path := range []string{"", ".", "/"} {
		result := tool.Execute(context.Background(), map[string]any{
			"vault_path":  path,
			"explanation": "test",
		})
		if result.IsError {
			t.Fatalf("path %q: unexpected error: %s", path, result.ForLLM)
		}
		if !strings.Contains(result.ForLLM, "FILE: a.md") {
			t.Errorf("path %q: expected a.md in listing: %q", path, result.ForLLM)
		}
		if !strings.Contains(result.ForLLM, "DIR:  folder") {
			t.Errorf("path %q: expected folder in listing: %q", path, result.ForLLM)
		}
		if strings.Contains(result.ForLLM, "b.md") {
			t.Errorf("path %q: nested note should not appear in root listing: %q", path, result.ForLLM)
		}
	}
}

func TestListVaultSubfolder(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"a.md":        "a",
		"folder/b.md": "b",
	})
	tool := NewListVaultTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"vault_path":  "folder",
		"explanation": "test",
	})
	if !strings.Contains(result.ForLLM, "FILE: b.md") {
		t.Errorf("expected b.md in folder listing: %q", result.ForLLM)
	}
}

func TestListVaultCapsEntries(t *testing.T) {
	notes := make(map[string]string)
	for i := 0; i < 30; i++ {
		notes[fmt.Sprintf("note-%02d.md", i)] = "x"
	}
	store := newToolVault(t, notes)
	tool := NewListVaultTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"vault_path":  "",
		"explanation": "test",
	})
	if got := strings.Count(result.ForLLM, "FILE:"); got != listEntryCap {
		t.Errorf("expected %d entries shown, got %d", listEntryCap, got)
	}
	if !strings.Contains(result.ForLLM, "and 10 more entries") {
		t.Errorf("expected overflow marker: %q", result.ForLLM)
	}
}

func TestListVaultMissingFolderFallsBackToRoot(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"a.md": "a",
	})
	tool := NewListVaultTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"vault_path":  "nonexistent",
		"explanation": "test",
	})
	if result.IsError {
		t.Fatalf("fallback should not be an error: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "Folder not found: nonexistent") {
		t.Errorf("expected folder-not-found prefix: %q", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "FILE: a.md") {
		t.Errorf("expected root contents in fallback: %q", result.ForLLM)
	}
}

func TestListVaultEmptyVault(t *testing.T) {
	store := newToolVault(t, nil)
	tool := NewListVaultTool(store)

	result := tool.Execute(context.Background(), map[string]any{
		"vault_path":  "",
		"explanation": "test",
	})
	if result.ForLLM != "The vault is empty." {
		t.Errorf("expected empty-vault text, got %q", result.ForLLM)
	}
}
