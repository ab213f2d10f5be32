// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package agent_test

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attune-dev/attune/internal/agent"
	"github.com/attune-dev/attune/internal/knowledge"
	"github.com/attune-dev/attune/internal/oracle"
	"github.com/attune-dev/attune/internal/store/memory"
)

// Distinctive fragments of the oracle prompts, used to route scripted
// replies and count call kinds.
const (
	preferencePromptMarker = "contains a user preference"
	extractPromptMarker    = "Extract any factual claims"
	validatePromptMarker   = "factually accurate based on general knowledge"
	generationPromptMarker = "adaptive and helpful chatbot assistant"
)

const (
	noPreferenceJSON = `{"contains_preference": false, "confidence": 0.95}`
	noClaimsJSON     = `[]`
	acceptClaimJSON  = `{"is_factual": true, "is_accurate": true, "reason": "verified"}`
)

// scriptedCompleter records every completion request and answers through
// a caller-supplied respond function.
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

func (c *scriptedCompleter) allCalls() []oracle.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]oracle.CompletionRequest(nil), c.calls...)
}

// generationCalls returns the requests that carried the grounded system
// prompt, i.e. stage-4 generation calls.
func (c *scriptedCompleter) generationCalls() []oracle.CompletionRequest {
	var out []oracle.CompletionRequest
	for _, req := range c.allCalls() {
		if strings.Contains(req.SystemPrompt, generationPromptMarker) {
			out = append(out, req)
		}
	}
	return out
}

func promptOf(req oracle.CompletionRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[0].Content
}

// respondWith routes each prompt kind to a fixed reply. Requests that are
// not analysis prompts are treated as generation calls.
func respondWith(pref, extract, validate, generate string) func(oracle.CompletionRequest) (string, error) {
	return func(req oracle.CompletionRequest) (string, error) {
		prompt := promptOf(req)
		switch {
		case strings.Contains(prompt, preferencePromptMarker):
			return pref, nil
		case strings.Contains(prompt, extractPromptMarker):
			return extract, nil
		case strings.Contains(prompt, validatePromptMarker):
			return validate, nil
		default:
			return generate, nil
		}
	}
}

// quietRespond answers "nothing to learn" for every analysis prompt and a
// fixed reply for generation.
func quietRespond(generate string) func(oracle.CompletionRequest) (string, error) {
	return respondWith(noPreferenceJSON, noClaimsJSON, acceptClaimJSON, generate)
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

// loopFixture bundles a Loop with the pieces tests inspect.
type loopFixture struct {
	loop      *agent.Loop
	base      *knowledge.Base
	completer *scriptedCompleter
}

// newLoopFixture wires a Loop over an in-memory store and a scripted
// completer. cfg's dependency fields are filled in; tuning fields are
// respected.
func newLoopFixture(t *testing.T, embedder *stubEmbedder, respond func(oracle.CompletionRequest) (string, error), cfg agent.LoopConfig) *loopFixture {
	t.Helper()

	st, err := memory.New(embedder)
	require.NoError(t, err)

	base, err := knowledge.NewBase(knowledge.Config{Store: st})
	require.NoError(t, err)

	completer := &scriptedCompleter{respond: respond}
	cfg.Base = base
	cfg.Validator = knowledge.NewValidator(completer, base)
	cfg.Oracle = completer

	return &loopFixture{
		loop:      agent.NewLoop(cfg),
		base:      base,
		completer: completer,
	}
}
