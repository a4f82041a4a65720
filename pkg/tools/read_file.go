package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/edit"
	"github.com/vaultpilot/vaultpilot/pkg/vault"
)

// ReadFileTool returns a note's content, whole or as a 1-indexed
// inclusive line slice.
type ReadFileTool struct {
	store vault.Store
}

func NewReadFileTool(store vault.Store) *ReadFileTool {
	return &ReadFileTool{store: store}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read a note from the vault, either in full or a specific line range."
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Vault-relative path of the note to read",
			},
			"start_line": map[string]any{
				"type":        "integer",
				"description": "First line to read (1-indexed, inclusive)",
			},
			"end_line": map[string]any{
				"type":        "integer",
				"description": "Last line to read (1-indexed, inclusive)",
			},
			"read_entire_note": map[string]any{
				"type":        "boolean",
				"description": "Read the whole note regardless of line range",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "One sentence on why this note is being read",
			},
		},
		"required": []string{"file_path", "explanation"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return ErrorResult("file_path is required")
	}

	if !t.store.Exists(path) {
		return NewToolResult(fmt.Sprintf("File not found: %s", path))
	}

	content, err := t.store.Read(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to read %s: %v", path, err)).WithError(err)
	}

	entire, _ := args["read_entire_note"].(bool)
	start, hasStart := intArg(args, "start_line")
	end, hasEnd := intArg(args, "end_line")

	if entire || (!hasStart && !hasEnd) {
		return NewToolResult(content)
	}

	lines := edit.SplitLines(content)
	if !hasStart || start < 1 {
		start = 1
	}
	if !hasEnd || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) || end < start {
		return NewToolResult(fmt.Sprintf("Lines %d-%d are out of range: %s has %d lines", start, end, path, len(lines)))
	}

	return NewToolResult(strings.Join(lines[start-1:end], "\n"))
}

// intArg extracts an integer argument, tolerating the float64 that
// JSON decoding produces.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
