// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package flat_test

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/attune-dev/attune/internal/embedding"
)

// stubEmbedder is a deterministic in-process embedder. Texts listed in
// vecs get exactly those vectors; anything else gets a stable hash-derived
// vector so distinct texts land in distinct places.
type stubEmbedder struct {
	dims int
	vecs map[string][]float32
	err  error

	mu    sync.Mutex
	calls int
}

var _ embedding.Embedder = (*stubEmbedder)(nil)

func newStubEmbedder(dims int, vecs map[string][]float32) *stubEmbedder {
	return &stubEmbedder{dims: dims, vecs: vecs}
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vecs[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}
	return hashVector(text, s.dims), nil
}

func (s *stubEmbedder) Dims() int { return s.dims }

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func hashVector(text string, dims int) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000
	}
	return vec
}
