// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package knowledge implements the learning layer: a fact/preference
// facade over the semantic store, the oracle-backed fact validator, and
// the preference extractor. Facts enter long-term memory only after the
// validator has confirmed them; preferences are held as current state in
// memory and mirrored into the store as searchable history.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/attune-dev/attune/internal/store"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

const (
	// defaultRetrievalK is the search fan-out when the caller does not
	// name one.
	defaultRetrievalK = 3

	// defaultSimilarityThreshold is the minimum similarity a retrieved
	// item must exceed to count as relevant.
	defaultSimilarityThreshold = 0.75
)

// SourceUser marks facts learned directly from user utterances.
const SourceUser = "user"

// Config configures a knowledge Base.
type Config struct {
	// Store backs fact storage and preference history.
	Store store.Store

	// RetrievalK is the default search fan-out. Zero selects 3.
	RetrievalK int

	// SimilarityThreshold is the relevance cutoff applied to retrieved
	// facts. Zero selects 0.75.
	SimilarityThreshold float64
}

// Base composes the semantic store with an in-memory preference map.
// A preference's current value lives in the map; its history lives in the
// store as searchable items. The map starts empty on every construction,
// so preferences are per-session state while facts survive restarts.
type Base struct {
	store     store.Store
	k         int
	threshold float64

	// mu guards prefs only. Store operations carry their own locking.
	mu    sync.RWMutex
	prefs map[string]string
}

// NewBase builds a knowledge base over cfg.Store.
func NewBase(cfg Config) (*Base, error) {
	if cfg.Store == nil {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "knowledge: store is required")
	}

	k := cfg.RetrievalK
	if k <= 0 {
		k = defaultRetrievalK
	}
	threshold := cfg.SimilarityThreshold
	if threshold == 0 {
		threshold = defaultSimilarityThreshold
	}

	return &Base{
		store:     cfg.Store,
		k:         k,
		threshold: threshold,
		prefs:     make(map[string]string),
	}, nil
}

// AddFact writes a validated fact into the store and reports whether it
// was admitted. Unvalidated facts are refused without touching the store:
// only claims the validator has confirmed may enter long-term memory.
func (b *Base) AddFact(ctx context.Context, text string, validated bool, source string) (bool, error) {
	if !validated {
		return false, nil
	}

	meta := store.Metadata{
		Kind:      store.KindFact,
		Validated: true,
		Source:    source,
		Timestamp: time.Now(),
	}
	if err := b.store.Insert(ctx, text, meta); err != nil {
		return false, err
	}

	slog.Debug("fact stored", "source", source)
	return true, nil
}

// AddPreference records a behavioral preference. The new value overwrites
// any previous one in the preference map (last write wins); the store
// keeps every historical value as a searchable Preference item.
func (b *Base) AddPreference(ctx context.Context, prefType, value string) error {
	if prefType == "" || value == "" {
		return attuneerr.New(attuneerr.CodeStoreInvalidInput, "knowledge: preference type and value are required")
	}

	b.mu.Lock()
	b.prefs[prefType] = value
	b.mu.Unlock()

	meta := store.Metadata{
		Kind:      store.KindPreference,
		Key:       prefType,
		Value:     value,
		Timestamp: time.Now(),
	}
	text := fmt.Sprintf("User preference: %s = %s", prefType, value)
	if err := b.store.Insert(ctx, text, meta); err != nil {
		return err
	}

	slog.Debug("preference stored", "type", prefType, "value", value)
	return nil
}

// Preferences returns a snapshot copy of the current preference map.
func (b *Base) Preferences() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]string, len(b.prefs))
	for k, v := range b.prefs {
		out[k] = v
	}
	return out
}

// RelevantFacts returns up to k stored fact texts relevant to query, most
// similar first. Only validated facts whose similarity strictly exceeds
// the threshold qualify; preference items and weak matches are dropped
// even when that leaves fewer than k results. k <= 0 selects the
// configured default fan-out.
func (b *Base) RelevantFacts(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = b.k
	}

	matches, err := b.store.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	var facts []string
	for _, m := range matches {
		if m.Item.Metadata.Kind != store.KindFact || !m.Item.Metadata.Validated {
			continue
		}
		if m.Similarity <= b.threshold {
			continue
		}
		facts = append(facts, m.Item.Text)
	}
	return facts, nil
}

// FactCount reports how many validated facts the store holds.
func (b *Base) FactCount(ctx context.Context) (int, error) {
	return b.store.CountWhere(ctx, func(m store.Metadata) bool {
		return m.Kind == store.KindFact && m.Validated
	})
}

// PreferenceCount reports how many preference types are currently set.
func (b *Base) PreferenceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.prefs)
}

// PreferenceHistoryCount reports how many preference mirror items the
// store holds, counting every historical value.
func (b *Base) PreferenceHistoryCount(ctx context.Context) (int, error) {
	return b.store.CountWhere(ctx, func(m store.Metadata) bool {
		return m.Kind == store.KindPreference
	})
}

// Close releases the underlying store.
func (b *Base) Close() error {
	return b.store.Close()
}
