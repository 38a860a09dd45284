package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// EmbeddingCacheStore handles embedding cache operations in SQLite.
type EmbeddingCacheStore struct {
	db *DB
}

func NewEmbeddingCacheStore(db *DB) *EmbeddingCacheStore {
	return &EmbeddingCacheStore{db: db}
}

// Get returns a cached embedding by content hash, or nil if not found.
func (s *EmbeddingCacheStore) Get(ctx context.Context, contentHash string) (*models.EmbeddingCacheEntry, error) {
	var e models.EmbeddingCacheEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT content_hash, embedding, dimension, model, updated_at
		FROM embedding_cache WHERE content_hash = ?
	`, contentHash).Scan(&e.ContentHash, &e.Embedding, &e.Dimension, &e.Model, &e.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding cache: %w", err)
	}
	return &e, nil
}

// Put upserts an embedding cache entry.
func (s *EmbeddingCacheStore) Put(ctx context.Context, entry *models.EmbeddingCacheEntry) error {
	entry.UpdatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (content_hash, embedding, dimension, model, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at
	`, entry.ContentHash, entry.Embedding, entry.Dimension, entry.Model, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put embedding cache: %w", err)
	}
	return nil
}

// Count returns the number of cached embeddings.
func (s *EmbeddingCacheStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embedding cache: %w", err)
	}
	return n, nil
}
