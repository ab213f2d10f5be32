// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package knowledge_test

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attune-dev/attune/internal/knowledge"
	"github.com/attune-dev/attune/internal/oracle"
	"github.com/attune-dev/attune/internal/store/memory"
)

// Distinctive fragments of the three analysis prompts, used to route
// scripted oracle replies.
const (
	preferencePromptMarker = "contains a user preference"
	extractPromptMarker    = "Extract any factual claims"
	validatePromptMarker   = "factually accurate based on general knowledge"
)

const (
	noPreferenceJSON = `{"contains_preference": false, "confidence": 0.95}`
	noClaimsJSON     = `[]`
	acceptClaimJSON  = `{"is_factual": true, "is_accurate": true, "reason": "verified"}`
)

// scriptedCompleter records every completion request and answers through a
// caller-supplied respond function.
type scriptedCompleter struct {
	mu      sync.Mutex
	calls   []oracle.CompletionRequest
	respond func(req oracle.CompletionRequest) (string, error)
}

func (c *scriptedCompleter) Complete(_ context.Context, req oracle.CompletionRequest) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()

	if c.respond == nil {
		return "", nil
	}
	return c.respond(req)
}

func (c *scriptedCompleter) callCount(marker string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, req := range c.calls {
		if strings.Contains(promptOf(req), marker) {
			n++
		}
	}
	return n
}

func (c *scriptedCompleter) allCalls() []oracle.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]oracle.CompletionRequest(nil), c.calls...)
}

func promptOf(req oracle.CompletionRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[0].Content
}

// respondWith routes each analysis prompt kind to a fixed reply.
func respondWith(pref, extract, validate string) func(oracle.CompletionRequest) (string, error) {
	return func(req oracle.CompletionRequest) (string, error) {
		prompt := promptOf(req)
		switch {
		case strings.Contains(prompt, preferencePromptMarker):
			return pref, nil
		case strings.Contains(prompt, extractPromptMarker):
			return extract, nil
		default:
			return validate, nil
		}
	}
}

// stubEmbedder returns mapped vectors for known texts and a deterministic
// hash-derived vector otherwise. Setting err (optionally scoped to
// failText) simulates an unavailable embedding service.
type stubEmbedder struct {
	dims     int
	vecs     map[string][]float32
	failText string
	err      error
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil && (e.failText == "" || e.failText == text) {
		return nil, e.err
	}
	if vec, ok := e.vecs[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}
	return hashVector(text, e.dims), nil
}

func (e *stubEmbedder) Dims() int { return e.dims }

func hashVector(text string, dims int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000
	}
	return vec
}

// newTestBase builds a knowledge base over an in-memory store using the
// given embedder.
func newTestBase(t *testing.T, embedder *stubEmbedder, cfg knowledge.Config) *knowledge.Base {
	t.Helper()

	st, err := memory.New(embedder)
	require.NoError(t, err)

	cfg.Store = st
	base, err := knowledge.NewBase(cfg)
	require.NoError(t, err)
	return base
}
