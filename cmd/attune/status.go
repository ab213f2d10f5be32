// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attune-dev/attune/internal/embedding"
	"github.com/attune-dev/attune/internal/knowledge"
	"github.com/attune-dev/attune/internal/secrets"
	"github.com/attune-dev/attune/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and knowledge store contents",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfgPath == "" {
		cfgPath = "built-in defaults"
	}
	fmt.Fprintf(out, "%-20s %s\n", "Config:", cfgPath)
	fmt.Fprintf(out, "%-20s %s/%s\n", "Oracle:", cfg.Oracle.Backend, cfg.Oracle.Model)
	fmt.Fprintf(out, "%-20s %s (%s)\n", "Store:", cfg.Store.Backend, cfg.Store.Path)

	keys := secrets.NewKeyringStore(secrets.DefaultService)
	if _, src, err := secrets.ResolveOracleKey(keys, cfg.Oracle.Backend, cfg.Oracle.APIKey); err != nil {
		fmt.Fprintf(out, "%-20s %s\n", "Oracle key:", "not found (run attune init)")
	} else {
		fmt.Fprintf(out, "%-20s configured (from %s)\n", "Oracle key:", src)
	}

	// Counting stored items needs an open store, which needs the
	// embedding client even though counting never embeds.
	embeddingKey, _, err := secrets.ResolveEmbeddingKey(keys, cfg.Embedding.APIKey)
	if err != nil {
		fmt.Fprintf(out, "%-20s unavailable (no embedding API key)\n", "Knowledge:")
		return nil
	}
	embedder, err := embedding.NewOpenAI(embedding.Config{
		APIKey:     embeddingKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return err
	}
	st, err := store.Open(store.Config{
		Backend:  cfg.Store.Backend,
		Path:     cfg.Store.Path,
		Embedder: embedder,
	})
	if err != nil {
		return err
	}
	base, err := knowledge.NewBase(knowledge.Config{Store: st})
	if err != nil {
		_ = st.Close()
		return err
	}
	defer func() { _ = base.Close() }()

	ctx := cmd.Context()
	facts, err := base.FactCount(ctx)
	if err != nil {
		return err
	}
	history, err := base.PreferenceHistoryCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-20s %d validated fact(s)\n", "Knowledge:", facts)
	fmt.Fprintf(out, "%-20s %d preference update(s) recorded\n", "", history)
	return nil
}
