package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/confirm"
)

func agentMode() config.AgentMode { return config.ModeAgent }
func askMode() config.AgentMode   { return config.ModeAsk }

func TestEditFileAcceptedWritesNote(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"note.md": "one\ntwo\nthree\n",
	})
	gateway := confirm.NewGateway(store)
	gateway.OnEditChange(func(p *confirm.PendingEdit) {
		if p != nil {
			go gateway.AcceptEdit()
		}
	})
	tool := NewEditFileTool(store, gateway, agentMode)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":    "note.md",
		"instructions": "capitalize two",
		"edits": []any{
			map[string]any{
				"type":       "replace",
				"start_line": float64(2),
				"end_line":   float64(2),
				"content":    "TWO",
			},
		},
		"explanation": "test",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "Successfully applied edits to note.md") {
		t.Errorf("expected success message, got %q", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "+ TWO") {
		t.Errorf("expected diff in result, got %q", result.ForLLM)
	}

	content, err := store.Read("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if content != "one\nTWO\nthree\n" {
		t.Errorf("note not updated: %q", content)
	}
}

func TestEditFileRejectedLeavesNote(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"note.md": "one\ntwo\n",
	})
	gateway := confirm.NewGateway(store)
	gateway.OnEditChange(func(p *confirm.PendingEdit) {
		if p != nil {
			go gateway.RejectEdit("wrong line")
		}
	})
	tool := NewEditFileTool(store, gateway, agentMode)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":    "note.md",
		"instructions": "delete line",
		"edits": []any{
			map[string]any{"type": "delete", "start_line": float64(1), "end_line": float64(1)},
		},
		"explanation": "test",
	})
	if result.IsError {
		t.Error("a rejection is a normal observation, not an error")
	}
	if !strings.Contains(result.ForLLM, "rejected") || !strings.Contains(result.ForLLM, "wrong line") {
		t.Errorf("expected rejection with reason, got %q", result.ForLLM)
	}

	content, _ := store.Read("note.md")
	if content != "one\ntwo\n" {
		t.Errorf("rejected edit must not touch the note: %q", content)
	}
}

func TestEditFileAskModeRefuses(t *testing.T) {
	store := newToolVault(t, map[string]string{"note.md": "one\n"})
	gateway := confirm.NewGateway(store)
	tool := NewEditFileTool(store, gateway, askMode)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":    "note.md",
		"instructions": "x",
		"edits": []any{
			map[string]any{"type": "delete", "start_line": float64(1), "end_line": float64(1)},
		},
		"explanation": "test",
	})
	if result.ForLLM != askModeRefusal {
		t.Errorf("expected fixed refusal, got %q", result.ForLLM)
	}
	if gateway.GetPendingEdit() != nil {
		t.Error("ask mode must not create a pending confirmation")
	}
}

func TestEditFileValidationFailureIsObservation(t *testing.T) {
	store := newToolVault(t, map[string]string{"note.md": "one\ntwo\n"})
	gateway := confirm.NewGateway(store)
	tool := NewEditFileTool(store, gateway, agentMode)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":    "note.md",
		"instructions": "x",
		"edits": []any{
			map[string]any{"type": "delete", "start_line": float64(1), "end_line": float64(9)},
		},
		"explanation": "test",
	})
	if result.IsError {
		t.Error("validation failure should be a plain observation")
	}
	if !strings.Contains(result.ForLLM, "Edit validation failed") {
		t.Errorf("expected validation text, got %q", result.ForLLM)
	}
	if gateway.GetPendingEdit() != nil {
		t.Error("failed validation must not create a pending confirmation")
	}
}

func TestEditFileNotFound(t *testing.T) {
	store := newToolVault(t, nil)
	gateway := confirm.NewGateway(store)
	tool := NewEditFileTool(store, gateway, agentMode)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":    "missing.md",
		"instructions": "x",
		"edits": []any{
			map[string]any{"type": "insert", "start_line": float64(1), "content": "hi"},
		},
		"explanation": "test",
	})
	if !strings.Contains(result.ForLLM, "File not found: missing.md") {
		t.Errorf("expected not-found text, got %q", result.ForLLM)
	}
}

func TestEditFileMalformedEdits(t *testing.T) {
	store := newToolVault(t, map[string]string{"note.md": "one\n"})
	gateway := confirm.NewGateway(store)
	tool := NewEditFileTool(store, gateway, agentMode)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":    "note.md",
		"instructions": "x",
		"edits":        "not an array",
		"explanation":  "test",
	})
	if !result.IsError {
		t.Error("malformed edits should produce an error observation")
	}
}

func TestEditFileDiffIgnoresMissingTrailingNewline(t *testing.T) {
	store := newToolVault(t, map[string]string{
		"note.md": "one\ntwo\nthree",
	})
	gateway := confirm.NewGateway(store)
	gateway.OnEditChange(func(p *confirm.PendingEdit) {
		if p != nil {
			go gateway.AcceptEdit()
		}
	})
	tool := NewEditFileTool(store, gateway, agentMode)

	result := tool.Execute(context.Background(), map[string]any{
		"file_path":    "note.md",
		"instructions": "capitalize two",
		"edits": []any{
			map[string]any{
				"type":       "replace",
				"start_line": float64(2),
				"end_line":   float64(2),
				"content":    "TWO",
			},
		},
		"explanation": "test",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "+ TWO") {
		t.Errorf("expected the replaced line in the diff, got %q", result.ForLLM)
	}
	if strings.Contains(result.ForLLM, "- three") || strings.Contains(result.ForLLM, "+ three") {
		t.Errorf("untouched final line must stay unchanged in the diff: %q", result.ForLLM)
	}
}
