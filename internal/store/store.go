// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package store defines the semantic store: a vector index over stored
// items supporting insert, similarity search, and predicate deletion.
// The store knows nothing about facts or preferences; that semantic layer
// lives in the knowledge package.
package store

import (
	"context"
	"time"
)

// Kind labels what a stored item represents.
type Kind string

const (
	KindFact       Kind = "fact"
	KindPreference Kind = "preference"
)

// Metadata describes a stored item. Key and Value are only set for
// preference items, where they carry the preference type and its value at
// write time.
type Metadata struct {
	Kind      Kind      `json:"kind"`
	Validated bool      `json:"validated"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key,omitempty"`
	Value     any       `json:"value,omitempty"`
}

// Item is one stored text with its metadata. The item's vector lives in
// the backing index at the same position, keyed by ID.
type Item struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Match is a search hit. Similarity is the transformed distance score,
// higher is better, 1.0 is an exact match.
type Match struct {
	Item       Item
	Similarity float64
}

// Store is the semantic store contract. Implementations embed text via the
// configured embedding service on both the insert and search paths, and
// hold the index/item parity invariant: every removal rebuilds index and
// item list in lock-step.
type Store interface {
	// Insert embeds text and appends the item atomically. No partial
	// state is committed on failure.
	Insert(ctx context.Context, text string, meta Metadata) error

	// Search returns up to k matches ordered by descending similarity.
	// An empty store yields an empty result, not an error.
	Search(ctx context.Context, query string, k int) ([]Match, error)

	// DeleteWhere removes every item whose metadata satisfies pred.
	DeleteWhere(ctx context.Context, pred func(Metadata) bool) error

	// Count reports the number of stored items.
	Count(ctx context.Context) (int, error)

	// CountWhere reports how many stored items' metadata satisfy pred.
	CountWhere(ctx context.Context, pred func(Metadata) bool) (int, error)

	Close() error
}

// Similarity converts a raw distance d into a score in (0, 1] via
// 1 / (1 + d). The transform is monotonically decreasing, so downstream
// thresholds always read as "higher is better" regardless of the
// backend's distance metric.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}
