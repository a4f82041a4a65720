package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/vecstore"
)

const searchTopK = 5

// Searcher answers semantic queries against the vault index.
type Searcher interface {
	Query(ctx context.Context, query string, topK int) ([]vecstore.Match, error)
}

// VaultSearchTool ranks indexed notes by similarity to a query.
type VaultSearchTool struct {
	searcher Searcher
}

func NewVaultSearchTool(searcher Searcher) *VaultSearchTool {
	return &VaultSearchTool{searcher: searcher}
}

func (t *VaultSearchTool) Name() string {
	return "vault_search"
}

func (t *VaultSearchTool) Description() string {
	return "Search the vault for notes semantically related to a query. Returns the most relevant passages with their note paths."
}

func (t *VaultSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to search for",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "One sentence on why this search is being run",
			},
			"target_subpaths": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Optional folder paths to restrict the search to",
			},
		},
		"required": []string{"query", "explanation"},
	}
}

func (t *VaultSearchTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return ErrorResult("query is required")
	}

	subpaths := stringSlice(args["target_subpaths"])

	matches, err := t.searcher.Query(ctx, query, searchTopK*4)
	if err != nil {
		return ErrorResult(fmt.Sprintf("search failed: %v", err)).WithError(err)
	}

	if len(subpaths) > 0 {
		filtered := matches[:0]
		for _, m := range matches {
			if underAny(m.Note, subpaths) {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	if len(matches) > searchTopK {
		matches = matches[:searchTopK]
	}

	if len(matches) == 0 {
		return NewToolResult("No results found in the vault for this query.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d relevant passages:\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(&sb, "\n%d. %s (score %.3f)\n%s\n", i+1, m.Note, m.Score, m.Text)
	}
	return NewToolResult(sb.String())
}

func underAny(note string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.Trim(p, "/")
		if p == "" || note == p || strings.HasPrefix(note, p+"/") {
			return true
		}
	}
	return false
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
