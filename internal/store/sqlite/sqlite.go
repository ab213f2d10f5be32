// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package sqlite implements the semantic store on SQLite with the
// sqlite-vec extension. Unlike the flat backend it supports in-place
// vector deletion, so DeleteWhere needs no re-embedding rebuild.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/attune-dev/attune/internal/embedding"
	"github.com/attune-dev/attune/internal/store"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

func init() {
	sqlite_vec.Auto()

	store.RegisterBackend("sqlite", func(cfg store.Config) (store.Store, error) {
		return New(cfg.Path+".db", cfg.Embedder)
	})
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by SQLite with sqlite-vec.
type Store struct {
	db       *sql.DB
	embedder embedding.Embedder
	dims     int
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// vec0 virtual table and companion item table.
func New(dbPath string, embedder embedding.Embedder) (*Store, error) {
	if embedder == nil {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "sqlite: embedder is required")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: opening database", attuneerr.FieldPath(dbPath))
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: pinging database", attuneerr.FieldPath(dbPath))
	}

	dims := embedder.Dims()
	if err := migrate(db, dims); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, embedder: embedder, dims: dims}, nil
}

func migrate(db *sql.DB, dims int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS item_vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dims,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: creating item_vectors virtual table")
	}

	const itemDDL = `
CREATE TABLE IF NOT EXISTS items (
	id       TEXT PRIMARY KEY,
	text     TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(itemDDL); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: creating items table")
	}

	return nil
}

func (s *Store) Insert(ctx context.Context, text string, meta store.Metadata) error {
	if strings.TrimSpace(text) == "" {
		return attuneerr.New(attuneerr.CodeStoreInvalidInput, "sqlite: cannot insert empty text")
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	if len(vec) != s.dims {
		return attuneerr.New(attuneerr.CodeStoreVectorDimensionMismatch, "sqlite: embedding dimensionality mismatch",
			attuneerr.Field("got", len(vec)),
			attuneerr.Field("want", s.dims),
		)
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: serializing embedding")
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreInvalidInput, "sqlite: marshalling metadata")
	}

	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: beginning insert transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO item_vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: inserting vector")
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO items(id, text, metadata) VALUES (?, ?, ?)`, id, text, string(metaJSON)); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: inserting item")
	}

	if err := tx.Commit(); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: committing insert")
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query string, k int) ([]store.Match, error) {
	if k <= 0 {
		return nil, attuneerr.New(attuneerr.CodeStoreInvalidInput, "sqlite: search k must be positive")
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	blob, err := sqlite_vec.SerializeFloat32(qvec)
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: serializing query vector")
	}

	const q = `SELECT v.id, v.distance, i.text, COALESCE(i.metadata, '{}')
FROM item_vectors v
JOIN items i ON i.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var matches []store.Match
	for rows.Next() {
		var (
			item     store.Item
			distance float64
			metaStr  string
		)
		if err := rows.Scan(&item.ID, &distance, &item.Text, &metaStr); err != nil {
			return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: scanning search result")
		}
		if err := json.Unmarshal([]byte(metaStr), &item.Metadata); err != nil {
			return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactCorrupt, "sqlite: item metadata is not valid JSON",
				attuneerr.Field("id", item.ID),
			)
		}
		// vec0 reports Euclidean distance; similarity scores are calibrated
		// to squared distance, the same scale the flat backend uses.
		matches = append(matches, store.Match{Item: item, Similarity: store.Similarity(distance * distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: iterating search results")
	}

	return matches, nil
}

func (s *Store) DeleteWhere(ctx context.Context, pred func(store.Metadata) bool) error {
	if pred == nil {
		return attuneerr.New(attuneerr.CodeStoreInvalidInput, "sqlite: delete predicate is required")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, metadata FROM items`)
	if err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: listing items for delete")
	}
	defer func() { _ = rows.Close() }()

	var doomed []string
	for rows.Next() {
		var id, metaStr string
		if err := rows.Scan(&id, &metaStr); err != nil {
			return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: scanning item for delete")
		}
		var meta store.Metadata
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactCorrupt, "sqlite: item metadata is not valid JSON",
				attuneerr.Field("id", id),
			)
		}
		if pred(meta) {
			doomed = append(doomed, id)
		}
	}
	if err := rows.Err(); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: iterating items for delete")
	}
	if len(doomed) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: beginning delete transaction")
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(doomed)), ",")
	args := make([]any, len(doomed))
	for i, id := range doomed {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: deleting vectors")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: deleting items")
	}

	if err := tx.Commit(); err != nil {
		return attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: committing delete")
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: counting items")
	}
	return n, nil
}

func (s *Store) CountWhere(ctx context.Context, pred func(store.Metadata) bool) (int, error) {
	if pred == nil {
		return 0, attuneerr.New(attuneerr.CodeStoreInvalidInput, "sqlite: count predicate is required")
	}

	// Predicates are arbitrary Go functions, so metadata filtering happens
	// here rather than in SQL.
	rows, err := s.db.QueryContext(ctx, `SELECT id, metadata FROM items`)
	if err != nil {
		return 0, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: listing items for count")
	}
	defer func() { _ = rows.Close() }()

	n := 0
	for rows.Next() {
		var id, metaStr string
		if err := rows.Scan(&id, &metaStr); err != nil {
			return 0, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: scanning item for count")
		}
		var meta store.Metadata
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			return 0, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactCorrupt, "sqlite: item metadata is not valid JSON",
				attuneerr.Field("id", id),
			)
		}
		if pred(meta) {
			n++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, attuneerr.Wrap(err, attuneerr.CodeStoreArtifactIOFailure, "sqlite: iterating items for count")
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
