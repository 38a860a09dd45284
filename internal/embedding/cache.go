package embedding

import (
	"context"
	"log/slog"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/store"
)

// CachedEmbedder wraps an Embedder with content-hash caching via SQLite.
type CachedEmbedder struct {
	inner  Embedder
	cache  *store.EmbeddingCacheStore
	model  string
	logger *slog.Logger
}

func NewCachedEmbedder(inner Embedder, cache *store.EmbeddingCacheStore, model string, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache,
		model:  model,
		logger: logger,
	}
}

func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Embed returns the embedding for text, using cache when available. Entries
// produced by another model or dimension are ignored and overwritten.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(text)

	entry, err := e.cache.Get(ctx, hash)
	if err != nil {
		e.logger.Warn("embedding cache read failed", "error", err)
		entry = nil
	}
	if entry != nil && entry.Model == e.model && entry.Dimension == e.inner.Dimensions() {
		if vec := BytesToFloat32(entry.Embedding); len(vec) == entry.Dimension {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	cacheEntry := &models.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   Float32ToBytes(vec),
		Dimension:   len(vec),
		Model:       e.model,
	}
	if err := e.cache.Put(ctx, cacheEntry); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}

	return vec, nil
}
