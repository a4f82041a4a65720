package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/vault"
)

const listEntryCap = 20

// ListVaultTool lists the immediate children of a vault folder.
type ListVaultTool struct {
	store vault.Store
}

func NewListVaultTool(store vault.Store) *ListVaultTool {
	return &ListVaultTool{store: store}
}

func (t *ListVaultTool) Name() string {
	return "list_vault"
}

func (t *ListVaultTool) Description() string {
	return "List the notes and folders directly inside a vault folder. Use an empty path for the vault root."
}

func (t *ListVaultTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"vault_path": map[string]any{
				"type":        "string",
				"description": "Folder to list, relative to the vault root. Empty, '.' or '/' list the root.",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "One sentence on why this listing is needed",
			},
		},
		"required": []string{"vault_path", "explanation"},
	}
}

func (t *ListVaultTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	path, _ := args["vault_path"].(string)
	path = normalizeFolder(path)

	listing, err := t.store.List(path)
	if err != nil && path != "" {
		// Fall back to the root so the model still gets some orientation
		listing, err = t.store.List("")
		if err == nil {
			return NewToolResult(fmt.Sprintf("Folder not found: %s. Vault root contents:\n%s",
				path, formatListing(listing)))
		}
	}
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to list vault: %v", err)).WithError(err)
	}

	if len(listing.Folders)+len(listing.Files) == 0 {
		if path == "" {
			return NewToolResult("The vault is empty.")
		}
		return NewToolResult(fmt.Sprintf("The folder %s is empty.", path))
	}

	return NewToolResult(formatListing(listing))
}

func normalizeFolder(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "." {
		return ""
	}
	return path
}

func formatListing(listing vault.Listing) string {
	var sb strings.Builder
	total := 0
	shown := 0

	for _, f := range listing.Folders {
		total++
		if shown < listEntryCap {
			sb.WriteString("DIR:  " + f + "\n")
			shown++
		}
	}
	for _, f := range listing.Files {
		total++
		if shown < listEntryCap {
			sb.WriteString("FILE: " + f + "\n")
			shown++
		}
	}

	if total > shown {
		fmt.Fprintf(&sb, "... and %d more entries\n", total-shown)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
