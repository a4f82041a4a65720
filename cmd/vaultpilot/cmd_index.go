package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/vault"
	"github.com/vaultpilot/vaultpilot/pkg/vecstore"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vault search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return indexCmd(cmd.Context())
		},
	}
}

func indexCmd(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store := vault.NewDirStore(cfg.ResolvedVaultPath())
	index := vecstore.NewIndex(filepath.Join(config.DataDir(), "index.gob"))
	if err := index.Load(); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	embedder := vecstore.NewHTTPEmbedder(cfg.Embeddings.BaseURL, cfg.Embeddings.APIKey, cfg.Embeddings.Model)
	indexer := vecstore.NewIndexer(store, index, embedder, 0)

	fmt.Printf("Indexing %s...\n", cfg.ResolvedVaultPath())
	stats, err := indexer.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	fmt.Printf("Indexed %d notes (%d chunks)\n", stats.Notes, stats.Chunks)
	return nil
}
