// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/attune-dev/attune/internal/agent"
	"github.com/attune-dev/attune/internal/config"
	"github.com/attune-dev/attune/internal/embedding"
	"github.com/attune-dev/attune/internal/knowledge"
	"github.com/attune-dev/attune/internal/oracle"
	"github.com/attune-dev/attune/internal/oracle/anthropic"
	"github.com/attune-dev/attune/internal/oracle/google"
	"github.com/attune-dev/attune/internal/oracle/openai"
	"github.com/attune-dev/attune/internal/secrets"
	"github.com/attune-dev/attune/internal/store"
	attuneerr "github.com/attune-dev/attune/pkg/errors"

	// Store backends register themselves with the factory.
	_ "github.com/attune-dev/attune/internal/store/flat"
	_ "github.com/attune-dev/attune/internal/store/memory"
	_ "github.com/attune-dev/attune/internal/store/sqlite"
)

// App bundles the wired subsystems behind the CLI commands.
type App struct {
	Config     *config.Config
	Registry   *oracle.Registry
	Store      store.Store
	Base       *knowledge.Base
	Loop       *agent.Loop
	Dispatcher *agent.Dispatcher
}

// WireApp assembles the conversation pipeline from configuration:
// resolved API keys, the oracle registry, the embedder, the semantic
// store, the knowledge base, and the dispatcher in front of the loop.
func WireApp(cfg *config.Config) (*App, error) {
	keys := secrets.NewKeyringStore(secrets.DefaultService)

	// 1. Oracle backend and registry.
	oracleKey, _, err := secrets.ResolveOracleKey(keys, cfg.Oracle.Backend, cfg.Oracle.APIKey)
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure,
			fmt.Sprintf("wire: no API key for the %s oracle (run attune init)", cfg.Oracle.Backend))
	}
	backend, err := newOracleBackend(cfg, oracleKey)
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure, "wire: building oracle backend")
	}
	policy := oracle.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Oracle.MaxRetries
	registry := oracle.NewRegistry(cfg.Oracle.Timeout, policy)
	registry.Register(cfg.Oracle.Backend, backend)
	if err := registry.SetDefault(cfg.Oracle.Backend + "/" + cfg.Oracle.Model); err != nil {
		_ = registry.Close()
		return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure, "wire: setting default model")
	}

	// 2. Embedder.
	embeddingKey, _, err := secrets.ResolveEmbeddingKey(keys, cfg.Embedding.APIKey)
	if err != nil {
		_ = registry.Close()
		return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure,
			"wire: no API key for embeddings (set ATTUNE_EMBEDDING_API_KEY or OPENAI_API_KEY)")
	}
	embedder, err := embedding.NewOpenAI(embedding.Config{
		APIKey:     embeddingKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		_ = registry.Close()
		return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure, "wire: building embedder")
	}

	// 3. Semantic store.
	if cfg.Store.Backend != "memory" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
			_ = registry.Close()
			return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure, "wire: creating store directory",
				attuneerr.FieldPath(cfg.Store.Path))
		}
	}
	st, err := store.Open(store.Config{
		Backend:  cfg.Store.Backend,
		Path:     cfg.Store.Path,
		Embedder: embedder,
	})
	if err != nil {
		_ = registry.Close()
		return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure, "wire: opening knowledge store")
	}

	// 4. Knowledge base and fact validator.
	base, err := knowledge.NewBase(knowledge.Config{
		Store:               st,
		RetrievalK:          cfg.Retrieval.K,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
	})
	if err != nil {
		_ = st.Close()
		_ = registry.Close()
		return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure, "wire: building knowledge base")
	}
	client := registry.Client("default")
	validator := knowledge.NewValidator(client, base)

	// 5. Conversation loop.
	loop := agent.NewLoop(agent.LoopConfig{
		Base:        base,
		Validator:   validator,
		Oracle:      client,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		MaxHistory:  cfg.Conversation.MaxHistory,
		RetrievalK:  cfg.Retrieval.K,
	})

	// 6. Intent router and dispatcher.
	var extra []agent.KeywordPack
	if cfg.Conversation.KeywordPacks != "" {
		extra, err = agent.LoadKeywordPacks(cfg.Conversation.KeywordPacks)
		if err != nil {
			_ = base.Close()
			_ = registry.Close()
			return nil, attuneerr.Wrap(err, attuneerr.CodeCLISetupFailure, "wire: loading keyword packs",
				attuneerr.FieldPath(cfg.Conversation.KeywordPacks))
		}
	}
	router := agent.NewRouter(cfg.Conversation.Locale, extra...)
	dispatcher := agent.NewDispatcher(router, loop)

	return &App{
		Config:     cfg,
		Registry:   registry,
		Store:      st,
		Base:       base,
		Loop:       loop,
		Dispatcher: dispatcher,
	}, nil
}

// Close releases the oracle registry and the knowledge base. Closing the
// base closes the underlying store.
func (a *App) Close() error {
	return attuneerr.Join(a.Registry.Close(), a.Base.Close())
}

// newOracleBackend constructs the configured completion backend. The
// base URL only applies to the openai backend, where it selects between
// OpenAI-compatible providers.
func newOracleBackend(cfg *config.Config, apiKey string) (oracle.Oracle, error) {
	switch cfg.Oracle.Backend {
	case "openai":
		return openai.New(openai.Config{APIKey: apiKey, BaseURL: cfg.Oracle.BaseURL})
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: apiKey})
	case "google":
		return google.New(google.Config{APIKey: apiKey})
	default:
		return nil, attuneerr.New(attuneerr.CodeOracleBackendNotFound, "unsupported oracle backend",
			attuneerr.FieldBackend(cfg.Oracle.Backend))
	}
}
