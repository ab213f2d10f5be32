// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package memory implements the semantic store without persistence.
// Everything lives (and dies) in process memory, which makes it the
// backend of choice for tests and throwaway sessions.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/attune-dev/attune/internal/embedding"
	"github.com/attune-dev/attune/internal/store"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

func init() {
	store.RegisterBackend("memory", func(cfg store.Config) (store.Store, error) {
		return New(cfg.Embedder)
	})
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is an in-memory flat-scan vector store.
type Store struct {
	embedder embedding.Embedder
	dims     int

	mu      sync.RWMutex
	vectors [][]float32
	items   []store.Item
}

func New(embedder embedding.Embedder) (*Store, error) {
	if embedder == nil {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "memory: embedder is required")
	}
	return &Store{embedder: embedder, dims: embedder.Dims()}, nil
}

func (s *Store) Insert(ctx context.Context, text string, meta store.Metadata) error {
	if strings.TrimSpace(text) == "" {
		return attuneerr.New(attuneerr.CodeStoreInvalidInput, "memory: cannot insert empty text")
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	if len(vec) != s.dims {
		return attuneerr.New(attuneerr.CodeStoreVectorDimensionMismatch, "memory: embedding dimensionality mismatch",
			attuneerr.Field("got", len(vec)),
			attuneerr.Field("want", s.dims),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, vec)
	s.items = append(s.items, store.Item{
		ID:       uuid.NewString(),
		Text:     text,
		Metadata: meta,
	})
	return nil
}

func (s *Store) Search(ctx context.Context, query string, k int) ([]store.Match, error) {
	if k <= 0 {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "memory: search k must be positive")
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.items) == 0 {
		return nil, nil
	}
	if len(qvec) != s.dims {
		return nil, attuneerr.New(attuneerr.CodeStoreVectorDimensionMismatch, "memory: query embedding dimensionality mismatch",
			attuneerr.Field("got", len(qvec)),
			attuneerr.Field("want", s.dims),
		)
	}

	matches := make([]store.Match, len(s.items))
	for i, vec := range s.vectors {
		matches[i] = store.Match{
			Item:       s.items[i],
			Similarity: store.Similarity(squaredL2(qvec, vec)),
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) DeleteWhere(_ context.Context, pred func(store.Metadata) bool) error {
	if pred == nil {
		return attuneerr.New(attuneerr.CodeStoreInvalidInput, "memory: delete predicate is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Vectors are already in memory, so the rebuild reuses them instead
	// of re-embedding surviving items.
	keptItems := make([]store.Item, 0, len(s.items))
	keptVectors := make([][]float32, 0, len(s.vectors))
	for i, item := range s.items {
		if !pred(item.Metadata) {
			keptItems = append(keptItems, item)
			keptVectors = append(keptVectors, s.vectors[i])
		}
	}
	s.items = keptItems
	s.vectors = keptVectors
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *Store) CountWhere(_ context.Context, pred func(store.Metadata) bool) (int, error) {
	if pred == nil {
		return 0, attuneerr.New(attuneerr.CodeStoreInvalidInput, "memory: count predicate is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, item := range s.items {
		if pred(item.Metadata) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error { return nil }

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
