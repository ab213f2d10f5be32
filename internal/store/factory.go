// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package store

import (
	"sync"

	"github.com/attune-dev/attune/internal/embedding"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Config carries everything a backend needs to open a store.
type Config struct {
	// Backend selects the registered implementation. Empty means "flat".
	Backend string

	// Path is the base path for persisted artifacts: the flat backend
	// derives its artifact pair from it, the sqlite backend appends .db.
	// Ignored by the memory backend.
	Path string

	// Embedder turns text into vectors on the insert and search paths.
	Embedder embedding.Embedder
}

// Factory opens a store for a validated Config.
type Factory func(cfg Config) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Open creates a store using the backend named in cfg, defaulting to "flat".
func Open(cfg Config) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "flat"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, attuneerr.New(
			attuneerr.CodeStoreBackendUnsupported,
			"unsupported storage backend: "+backend,
			attuneerr.FieldBackend(backend),
		)
	}

	if cfg.Embedder == nil {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "store: embedder is required")
	}

	return factory(cfg)
}
