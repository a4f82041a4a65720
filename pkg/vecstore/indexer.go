package vecstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/logger"
	"github.com/vaultpilot/vaultpilot/pkg/vault"
)

// IndexStats summarizes a reindex run.
type IndexStats struct {
	Notes  int
	Chunks int
}

// Indexer walks a vault and keeps the vector index in sync with its notes.
type Indexer struct {
	store    vault.Store
	index    *Index
	embedder Embedder
	maxChars int
}

// NewIndexer creates an indexer over the given vault and index.
func NewIndexer(store vault.Store, index *Index, embedder Embedder, maxChars int) *Indexer {
	return &Indexer{
		store:    store,
		index:    index,
		embedder: embedder,
		maxChars: maxChars,
	}
}

// Reindex re-chunks and re-embeds every markdown note in the vault,
// removes index entries for notes that no longer exist, and saves.
func (in *Indexer) Reindex(ctx context.Context) (IndexStats, error) {
	var stats IndexStats

	present := make(map[string]bool)
	err := in.store.Walk(func(path string) error {
		if !strings.HasSuffix(path, ".md") {
			return nil
		}
		present[path] = true

		content, err := in.store.Read(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		chunks := ChunkNote(path, content, in.maxChars)
		in.index.DeleteByNote(path)
		if len(chunks) == 0 {
			return nil
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %s: %w", path, err)
		}
		for i := range chunks {
			if i < len(vectors) {
				chunks[i].Vector = vectors[i]
			}
		}

		in.index.Upsert(chunks)
		stats.Notes++
		stats.Chunks += len(chunks)
		logger.DebugCF("vecstore", "Indexed note", map[string]any{
			"note":   path,
			"chunks": len(chunks),
		})
		return nil
	})
	if err != nil {
		return stats, err
	}

	// Drop entries for notes deleted from the vault
	for _, note := range in.index.Notes() {
		if !present[note] {
			in.index.DeleteByNote(note)
		}
	}

	if err := in.index.Save(); err != nil {
		return stats, fmt.Errorf("save index: %w", err)
	}
	return stats, nil
}

// Query embeds the query text and returns the top-K matching chunks. An
// empty index returns no matches without touching the embeddings endpoint.
func (in *Indexer) Query(ctx context.Context, query string, topK int) ([]Match, error) {
	if in.index.Len() == 0 {
		return nil, nil
	}
	vectors, err := in.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding API returned no vector for query")
	}
	return in.index.Search(vectors[0], topK), nil
}
