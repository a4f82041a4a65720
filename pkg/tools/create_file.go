package tools

import (
	"context"
	"fmt"

	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/confirm"
	"github.com/vaultpilot/vaultpilot/pkg/vault"
)

// CreateFileTool creates a new note, gated behind user confirmation.
type CreateFileTool struct {
	store   vault.Store
	gateway *confirm.Gateway
	mode    ModeFunc
}

func NewCreateFileTool(store vault.Store, gateway *confirm.Gateway, mode ModeFunc) *CreateFileTool {
	return &CreateFileTool{store: store, gateway: gateway, mode: mode}
}

func (t *CreateFileTool) Name() string {
	return "create_file"
}

func (t *CreateFileTool) Description() string {
	return "Create a new note in the vault. Fails if a note already exists at the path. The user must confirm before the note is written."
}

func (t *CreateFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Vault-relative path for the new note",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Initial content of the note",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "One sentence on why this note is being created",
			},
		},
		"required": []string{"file_path", "content", "explanation"},
	}
}

func (t *CreateFileTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	if t.mode() == config.ModeAsk {
		return NewToolResult(askModeRefusal)
	}

	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return ErrorResult("file_path is required")
	}
	content, ok := args["content"].(string)
	if !ok {
		return ErrorResult("content is required")
	}

	if t.store.Exists(path) {
		return NewToolResult(fmt.Sprintf("File already exists: %s. Use edit_file to modify it.", path))
	}

	result, err := t.gateway.RequestCreate(path, content)
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}

	select {
	case text := <-result:
		return NewToolResult(text)
	case <-ctx.Done():
		return ErrorResult("create confirmation abandoned: " + ctx.Err().Error()).WithError(ctx.Err())
	}
}
