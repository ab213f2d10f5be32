// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package flat implements the semantic store as an in-memory flat index
// persisted to a co-located artifact pair: <base>.vec holds the packed
// vectors, <base>.items the item list. Both artifacts are rewritten on
// every mutation, so the on-disk pair always reflects the last committed
// state.
package flat

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/attune-dev/attune/internal/embedding"
	"github.com/attune-dev/attune/internal/store"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// maxConcurrentEmbeds bounds parallel embedding calls during an index
// rebuild so a large delete does not stampede the embedding service.
const maxConcurrentEmbeds = 4

func init() {
	store.RegisterBackend("flat", func(cfg store.Config) (store.Store, error) {
		return New(cfg.Path, cfg.Embedder)
	})
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a flat-scan vector store. Vectors and items are parallel
// slices: position i of one always describes position i of the other.
// The flat index supports no in-place removal, so DeleteWhere rebuilds
// both slices from the surviving items.
type Store struct {
	basePath string
	embedder embedding.Embedder
	dims     int

	// mu serializes mutations and keeps searches from observing a
	// partially rebuilt index.
	mu      sync.RWMutex
	vectors [][]float32
	items   []store.Item
}

// New opens the store at basePath, loading the artifact pair when it
// exists. A lone artifact is corrupt state and fails construction rather
// than silently starting empty.
func New(basePath string, embedder embedding.Embedder) (*Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "flat: base path is required")
	}
	if embedder == nil {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "flat: embedder is required")
	}

	if err := os.MkdirAll(filepath.Dir(basePath), 0o700); err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: creating store directory",
			attuneerr.FieldPath(filepath.Dir(basePath)),
		)
	}

	s := &Store{
		basePath: basePath,
		embedder: embedder,
		dims:     embedder.Dims(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) vecPath() string   { return s.basePath + ".vec" }
func (s *Store) itemsPath() string { return s.basePath + ".items" }

// load reads the artifact pair. Neither present means an empty store;
// exactly one present means corrupt state.
func (s *Store) load() error {
	vecExists, err := artifactExists(s.vecPath())
	if err != nil {
		return err
	}
	itemsExists, err := artifactExists(s.itemsPath())
	if err != nil {
		return err
	}

	if !vecExists && !itemsExists {
		return nil
	}
	if vecExists != itemsExists {
		missing := s.vecPath()
		if vecExists {
			missing = s.itemsPath()
		}
		return attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: store artifact pair is incomplete",
			attuneerr.FieldPath(s.basePath),
			attuneerr.Field("missing", missing),
		)
	}

	dims, vectors, err := readVectors(s.vecPath())
	if err != nil {
		return err
	}
	items, err := readItems(s.itemsPath())
	if err != nil {
		return err
	}

	if len(vectors) != len(items) {
		return attuneerr.New(attuneerr.CodeStoreArtifactCorrupt, "flat: vector and item counts disagree",
			attuneerr.FieldPath(s.basePath),
			attuneerr.Field("vectors", len(vectors)),
			attuneerr.Field("items", len(items)),
		)
	}
	if dims != s.dims {
		return attuneerr.New(attuneerr.CodeStoreVectorDimensionMismatch, "flat: persisted dimensionality does not match embedder",
			attuneerr.FieldPath(s.basePath),
			attuneerr.Field("persisted", dims),
			attuneerr.Field("configured", s.dims),
		)
	}

	s.vectors = vectors
	s.items = items
	return nil
}

func (s *Store) Insert(ctx context.Context, text string, meta store.Metadata) error {
	if strings.TrimSpace(text) == "" {
		return attuneerr.New(attuneerr.CodeStoreInvalidInput, "flat: cannot insert empty text")
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	if len(vec) != s.dims {
		return attuneerr.New(attuneerr.CodeStoreVectorDimensionMismatch, "flat: embedding dimensionality mismatch",
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
	if err := s.persistLocked(); err != nil {
		s.vectors = s.vectors[:len(s.vectors)-1]
		s.items = s.items[:len(s.items)-1]
		return err
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query string, k int) ([]store.Match, error) {
	if k <= 0 {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "flat: search k must be positive")
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
		return nil, attuneerr.New(attuneerr.CodeStoreVectorDimensionMismatch, "flat: query embedding dimensionality mismatch",
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

func (s *Store) DeleteWhere(ctx context.Context, pred func(store.Metadata) bool) error {
	if pred == nil {
		return attuneerr.New(attuneerr.CodeStoreInvalidInput, "flat: delete predicate is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]store.Item, 0, len(s.items))
	for _, item := range s.items {
		if !pred(item.Metadata) {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(s.items) {
		return nil
	}

	// The flat index cannot remove in place, so the surviving items are
	// re-embedded and both slices rebuilt together. Holding the write
	// lock for the rebuild keeps the parity invariant visible to readers.
	vectors, err := s.reembed(ctx, kept)
	if err != nil {
		return err
	}

	prevVectors, prevItems := s.vectors, s.items
	s.vectors, s.items = vectors, kept
	if err := s.persistLocked(); err != nil {
		s.vectors, s.items = prevVectors, prevItems
		return err
	}
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *Store) CountWhere(_ context.Context, pred func(store.Metadata) bool) (int, error) {
	if pred == nil {
		return 0, attuneerr.New(attuneerr.CodeStoreInvalidInput, "flat: count predicate is required")
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

// reembed computes vectors for items with bounded parallelism. Results
// land at the same index as their item, preserving parity.
func (s *Store) reembed(ctx context.Context, items []store.Item) ([][]float32, error) {
	vectors := make([][]float32, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEmbeds)
	for i, item := range items {
		g.Go(func() error {
			vec, err := s.embedder.Embed(ctx, item.Text)
			if err != nil {
				return err
			}
			if len(vec) != s.dims {
				return attuneerr.New(attuneerr.CodeStoreVectorDimensionMismatch, "flat: rebuild embedding dimensionality mismatch",
					attuneerr.Field("got", len(vec)),
					attuneerr.Field("want", s.dims),
				)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// persistLocked writes both artifacts. Callers hold mu. Each artifact is
// replaced atomically; a failure between the two writes leaves a count
// mismatch that load() reports as corrupt instead of serving skewed data.
func (s *Store) persistLocked() error {
	if err := writeVectors(s.vecPath(), s.dims, s.vectors); err != nil {
		return err
	}
	return writeItems(s.itemsPath(), s.items)
}

func artifactExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "flat: checking store artifact",
		attuneerr.FieldPath(path),
	)
}

// squaredL2 returns the squared Euclidean distance between two vectors of
// equal length.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
