// Package sqlite persists vector collections in a single SQLite file, the
// default backend for the course index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/courserag/courserag/vector"
)

// Options configuration for the SQLite connection
type Options struct {
	Path      string
	TableName string // Default "documents"
}

// DB owns the database handle. Collections share one table, discriminated by
// a collection column.
type DB struct {
	db        *sql.DB
	tableName string
}

// Open opens (creating if needed) the database file and initializes the schema
func Open(opts Options) (*DB, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "documents"
	}

	d := &DB{
		db:        db,
		tableName: tableName,
	}

	if err := d.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (d *DB) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			embedding BLOB NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_collection ON %s (collection);
	`, d.tableName, d.tableName, d.tableName)

	_, err := d.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Collection returns a vector.Store over the named collection
func (d *DB) Collection(name string) *Store {
	return &Store{
		db:         d.db,
		tableName:  d.tableName,
		collection: name,
	}
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Store is one collection inside the shared documents table
type Store struct {
	db         *sql.DB
	tableName  string
	collection string
}

var _ vector.Store = (*Store)(nil)

// Add upserts documents. Every document must carry an embedding.
func (s *Store) Add(ctx context.Context, docs []vector.Document) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (collection, id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding
	`, s.tableName)

	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}

		_, err = s.db.ExecContext(ctx, query,
			s.collection,
			doc.ID,
			doc.Content,
			string(metadataJSON),
			vector.EncodeVector(doc.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
		}
	}

	return nil
}

// Search performs similarity search over the whole collection
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vector.SearchResult, error) {
	return s.SearchWithFilter(ctx, query, k, nil)
}

// SearchWithFilter filters by metadata equality, then ranks by cosine
// similarity in process. Collections are course-sized, not web-sized, so the
// scan stays cheap.
func (s *Store) SearchWithFilter(ctx context.Context, query []float32, k int, filter map[string]any) ([]vector.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	docs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []vector.Document
	if len(filter) == 0 {
		candidates = docs
	} else {
		for _, doc := range docs {
			if vector.MatchesFilter(doc, filter) {
				candidates = append(candidates, doc)
			}
		}
	}

	return vector.TopK(query, candidates, k), nil
}

// All loads every document in the collection
func (s *Store) All(ctx context.Context) ([]vector.Document, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata, embedding
		FROM %s
		WHERE collection = ?
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var doc vector.Document
		var metadataJSON sql.NullString
		var embeddingBlob []byte

		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", doc.ID, err)
			}
		}

		doc.Embedding, err = vector.DecodeVector(embeddingBlob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", doc.ID, err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return docs, nil
}

// Clear removes every document in the collection
func (s *Store) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = ?`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, s.collection); err != nil {
		return fmt.Errorf("failed to clear collection %s: %w", s.collection, err)
	}
	return nil
}

// Stats returns document count and embedding dimension
func (s *Store) Stats(ctx context.Context) (*vector.Stats, error) {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE collection = ?`, s.tableName)

	stats := &vector.Stats{}
	if err := s.db.QueryRowContext(ctx, countQuery, s.collection).Scan(&stats.TotalDocuments); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if stats.TotalDocuments > 0 {
		embQuery := fmt.Sprintf(`SELECT embedding FROM %s WHERE collection = ? LIMIT 1`, s.tableName)

		var blob []byte
		if err := s.db.QueryRowContext(ctx, embQuery, s.collection).Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to read embedding: %w", err)
		}
		emb, err := vector.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		stats.Dimension = len(emb)
	}

	return stats, nil
}

// Close is a no-op. The connection belongs to the parent DB handle, which is
// shared between collections.
func (s *Store) Close() error {
	return nil
}
