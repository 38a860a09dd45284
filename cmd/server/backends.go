package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/config"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/embedding"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/pipeline"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/shortterm"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/store"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/vectorstore"
)

const startupProbe = 5 * time.Second

func newEmbedder(ctx context.Context, cfg *config.Config, db *store.DB, logger *slog.Logger) embedding.Embedder {
	if cfg.EmbeddingBackend == config.BackendHash {
		return embedding.NewHashEmbedder(cfg.EmbeddingDim)
	}

	ollama := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	probeCtx, cancel := context.WithTimeout(ctx, startupProbe)
	defer cancel()
	if err := ollama.HealthCheck(probeCtx); err != nil {
		logger.Warn("ollama not available at startup, will retry on first use", "error", err)
	}
	return embedding.NewCachedEmbedder(ollama, store.NewEmbeddingCacheStore(db), cfg.EmbeddingModel, logger)
}

// newShortTerm returns the short-term tier and a function releasing it.
func newShortTerm(cfg *config.Config) (memory.ShortTermStore, func(), error) {
	switch cfg.ShortTermBackend {
	case config.BackendRedis:
		s := shortterm.NewRedisStore(shortterm.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return s, func() { s.Close() }, nil
	case config.BackendMemory:
		s, err := shortterm.NewCacheStore(cfg.ShortTermMaxUsers)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown short-term backend %q", cfg.ShortTermBackend)
	}
}

func newLongTerm(ctx context.Context, cfg *config.Config, embedder embedding.Embedder, logger *slog.Logger) (memory.LongTermStore, error) {
	switch cfg.LongTermBackend {
	case config.BackendChromem:
		s, err := vectorstore.NewChromemStore(cfg.ChromemPath, embedder)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendQdrant:
		client := vectorstore.NewQdrantClient(cfg.QdrantURL, cfg.EmbeddingDim)
		probeCtx, cancel := context.WithTimeout(ctx, startupProbe)
		defer cancel()
		if err := client.HealthCheck(probeCtx); err != nil {
			logger.Warn("qdrant not available at startup, will retry on first use", "error", err)
		}
		return vectorstore.NewQdrantStore(client, embedder), nil
	default:
		return nil, fmt.Errorf("unknown long-term backend %q", cfg.LongTermBackend)
	}
}

// newPipelineMemory picks the backend the pipeline filter talks to: this
// process's engine, or a memory server reached over HTTP.
func newPipelineMemory(cfg *config.Config, r pipeline.Retriever, p pipeline.InteractionProcessor) pipeline.Memory {
	if cfg.PipelineMemory == config.BackendRemote {
		return pipeline.NewHTTPMemory(cfg.MemoryServerURL, cfg.RequestTimeout)
	}
	return pipeline.NewLocalMemory(r, p)
}
