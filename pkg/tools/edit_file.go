package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/confirm"
	"github.com/vaultpilot/vaultpilot/pkg/edit"
	"github.com/vaultpilot/vaultpilot/pkg/vault"
)

const askModeRefusal = "File modification is not available in ask mode. Ask the user to switch to agent mode to make changes to the vault."

// ModeFunc reports the current operating mode at call time, so a mode
// switch mid-session takes effect without rebuilding the tool set.
type ModeFunc func() config.AgentMode

// EditFileTool validates and applies line-based edits to a note,
// gated behind user confirmation.
type EditFileTool struct {
	store   vault.Store
	gateway *confirm.Gateway
	mode    ModeFunc
}

func NewEditFileTool(store vault.Store, gateway *confirm.Gateway, mode ModeFunc) *EditFileTool {
	return &EditFileTool{store: store, gateway: gateway, mode: mode}
}

func (t *EditFileTool) Name() string {
	return "edit_file"
}

func (t *EditFileTool) Description() string {
	return "Edit a note with line-based operations (insert, delete, replace). The user must confirm before changes are written."
}

func (t *EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Vault-relative path of the note to edit",
			},
			"instructions": map[string]any{
				"type":        "string",
				"description": "Short summary of the intended change, shown to the user",
			},
			"edits": map[string]any{
				"type":        "array",
				"description": "Edit operations to apply. Line numbers refer to the current note content.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []string{"insert", "delete", "replace"},
						},
						"start_line": map[string]any{
							"type":        "integer",
							"description": "First affected line (1-indexed). For insert, new lines go after this line.",
						},
						"end_line": map[string]any{
							"type":        "integer",
							"description": "Last affected line (inclusive), for delete and replace",
						},
						"content": map[string]any{
							"type":        "string",
							"description": "Replacement or inserted text, for insert and replace",
						},
						"description": map[string]any{
							"type":        "string",
							"description": "What this operation does",
						},
					},
					"required": []string{"type", "start_line"},
				},
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "One sentence on why this edit is being made",
			},
		},
		"required": []string{"file_path", "instructions", "edits", "explanation"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	if t.mode() == config.ModeAsk {
		return NewToolResult(askModeRefusal)
	}

	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return ErrorResult("file_path is required")
	}
	instructions, _ := args["instructions"].(string)

	ops, err := parseEdits(args["edits"])
	if err != nil {
		return ErrorResult(fmt.Sprintf("invalid edits: %v", err)).WithError(err)
	}
	if len(ops) == 0 {
		return ErrorResult("edits must contain at least one operation")
	}

	if !t.store.Exists(path) {
		return NewToolResult(fmt.Sprintf("File not found: %s", path))
	}
	original, err := t.store.Read(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to read %s: %v", path, err)).WithError(err)
	}

	lines := edit.SplitLines(original)
	if err := edit.Validate(ops, len(lines)); err != nil {
		return NewToolResult(fmt.Sprintf("Edit validation failed: %v", err))
	}

	modified := edit.JoinLines(edit.Apply(lines, ops))
	// Diff the normalized form of both sides: JoinLines always ends with a
	// newline, and diffing the raw original against it would report the last
	// line of a newline-less note as changed.
	diff := edit.Diff(edit.JoinLines(lines), modified)

	result, err := t.gateway.RequestEdit(path, instructions, diff, modified)
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}

	select {
	case text := <-result:
		return NewToolResult(text)
	case <-ctx.Done():
		return ErrorResult("edit confirmation abandoned: " + ctx.Err().Error()).WithError(ctx.Err())
	}
}

func parseEdits(v any) ([]edit.Operation, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var ops []edit.Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}
