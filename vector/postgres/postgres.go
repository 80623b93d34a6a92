// Package postgres backs vector collections with PostgreSQL and the pgvector
// extension, ranking with the cosine distance operator.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courserag/courserag/vector"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Options configuration for the Postgres connection
type Options struct {
	ConnString string
	TableName  string // Default "documents"
}

// DB owns the connection pool. Collections share one table, discriminated by
// a collection column.
type DB struct {
	pool      DBPool
	tableName string
}

// New creates a pool and initializes the schema
func New(ctx context.Context, opts Options) (*DB, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	d := NewWithPool(pool, opts.TableName)

	if err := d.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// NewWithPool creates a DB with an existing pool
// Useful for testing with mocks
func NewWithPool(pool DBPool, tableName string) *DB {
	if tableName == "" {
		tableName = "documents"
	}
	return &DB{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the pgvector extension and the documents table if needed
func (d *DB) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_collection ON %s (collection);
	`, d.tableName, d.tableName, d.tableName)

	_, err := d.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Collection returns a vector.Store over the named collection
func (d *DB) Collection(name string) *Store {
	return &Store{
		pool:       d.pool,
		tableName:  d.tableName,
		collection: name,
	}
}

// Close closes the connection pool
func (d *DB) Close() {
	d.pool.Close()
}

// Store is one collection inside the shared documents table
type Store struct {
	pool       DBPool
	tableName  string
	collection string
}

var _ vector.Store = (*Store)(nil)

// Add upserts documents. Every document must carry an embedding.
func (s *Store) Add(ctx context.Context, docs []vector.Document) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (collection, id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, s.tableName)

	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}

		_, err = s.pool.Exec(ctx, query,
			s.collection,
			doc.ID,
			doc.Content,
			metadataJSON,
			FormatVector(doc.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
		}
	}

	return nil
}

// Search performs similarity search over the whole collection
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vector.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	sql := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		WHERE collection = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, s.tableName)

	rows, err := s.pool.Query(ctx, sql, FormatVector(query), s.collection, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return scanResults(rows)
}

// SearchWithFilter narrows the search with a JSONB containment filter, which
// gives flat-key equality with AND semantics.
func (s *Store) SearchWithFilter(ctx context.Context, query []float32, k int, filter map[string]any) ([]vector.SearchResult, error) {
	if len(filter) == 0 {
		return s.Search(ctx, query, k)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		WHERE collection = $2 AND metadata @> $3::jsonb
		ORDER BY embedding <=> $1::vector
		LIMIT $4
	`, s.tableName)

	rows, err := s.pool.Query(ctx, sql, FormatVector(query), s.collection, filterJSON, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return scanResults(rows)
}

// All loads every document in the collection
func (s *Store) All(ctx context.Context) ([]vector.Document, error) {
	sql := fmt.Sprintf(`
		SELECT id, content, metadata, embedding::text
		FROM %s
		WHERE collection = $1
	`, s.tableName)

	rows, err := s.pool.Query(ctx, sql, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var doc vector.Document
		var metadataJSON []byte
		var embeddingText string

		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &embeddingText); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", doc.ID, err)
			}
		}

		doc.Embedding, err = ParseVector(embeddingText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedding for %s: %w", doc.ID, err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}

	return docs, nil
}

// Clear removes every document in the collection
func (s *Store) Clear(ctx context.Context) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE collection = $1", s.tableName)

	if _, err := s.pool.Exec(ctx, sql, s.collection); err != nil {
		return fmt.Errorf("failed to clear collection %s: %w", s.collection, err)
	}
	return nil
}

// Stats returns document count and embedding dimension
func (s *Store) Stats(ctx context.Context) (*vector.Stats, error) {
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE collection = $1", s.tableName)

	stats := &vector.Stats{}
	if err := s.pool.QueryRow(ctx, countSQL, s.collection).Scan(&stats.TotalDocuments); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if stats.TotalDocuments > 0 {
		dimSQL := fmt.Sprintf("SELECT vector_dims(embedding) FROM %s WHERE collection = $1 LIMIT 1", s.tableName)
		if err := s.pool.QueryRow(ctx, dimSQL, s.collection).Scan(&stats.Dimension); err != nil {
			return nil, fmt.Errorf("failed to read embedding dimension: %w", err)
		}
	}

	return stats, nil
}

// Close is a no-op. The pool belongs to the parent DB handle, which is shared
// between collections.
func (s *Store) Close() error {
	return nil
}

func scanResults(rows pgx.Rows) ([]vector.SearchResult, error) {
	defer rows.Close()

	results := []vector.SearchResult{}
	for rows.Next() {
		var res vector.SearchResult
		var metadataJSON []byte

		if err := rows.Scan(&res.Document.ID, &res.Document.Content, &metadataJSON, &res.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &res.Document.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", res.Document.ID, err)
			}
		}

		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	return results, nil
}

// FormatVector renders an embedding as a pgvector literal like "[1,0.5,-2]".
func FormatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector reverses FormatVector.
func ParseVector(s string) ([]float32, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}

	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return []float32{}, nil
	}

	parts := strings.Split(inner, ",")
	v := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector component %q: %w", part, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
