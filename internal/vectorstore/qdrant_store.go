package vectorstore

import (
	"context"
	"errors"
	"sort"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/embedding"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

const scrollPage = 256

// QdrantStore is the long-term tier backed by Qdrant, one collection per user.
type QdrantStore struct {
	client   *QdrantClient
	colls    *CollectionManager
	embedder embedding.Embedder
}

func NewQdrantStore(client *QdrantClient, embedder embedding.Embedder) *QdrantStore {
	return &QdrantStore{
		client:   client,
		colls:    NewCollectionManager(client),
		embedder: embedder,
	}
}

func (s *QdrantStore) Put(ctx context.Context, f models.Fragment) error {
	name, err := s.colls.EnsureForUser(ctx, f.UserID)
	if err != nil {
		return memory.Unavailable("qdrant put", err)
	}
	vec, err := s.embedder.Embed(ctx, f.Content)
	if err != nil {
		return memory.Unavailable("qdrant embed", err)
	}
	point := Point{ID: f.ID, Vector: vec, Payload: toPayload(f)}
	if err := s.client.Upsert(ctx, name, []Point{point}); err != nil {
		return memory.Unavailable("qdrant put", err)
	}
	return nil
}

// Search embeds query and returns the nearest fragments. An empty query
// returns the newest fragments instead.
func (s *QdrantStore) Search(ctx context.Context, userID, query string, limit int) ([]models.ScoredFragment, error) {
	name := CollectionName(userID)

	if query == "" {
		frags, err := s.scrollAll(ctx, name, nil)
		if err != nil {
			return nil, memory.Unavailable("qdrant list", err)
		}
		sort.Slice(frags, func(i, j int) bool { return frags[i].CreatedAt > frags[j].CreatedAt })
		if len(frags) > limit {
			frags = frags[:limit]
		}
		out := make([]models.ScoredFragment, len(frags))
		for i, f := range frags {
			out[i] = models.ScoredFragment{Fragment: f, Score: 1}
		}
		return out, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, memory.Unavailable("qdrant embed", err)
	}
	results, err := s.client.Search(ctx, name, vec, limit, nil)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, memory.Unavailable("qdrant search", err)
	}

	out := make([]models.ScoredFragment, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredFragment{Fragment: fromPayload(r.ID, r.Payload), Score: r.Score})
	}
	return out, nil
}

func (s *QdrantStore) Contains(ctx context.Context, userID, contentKey string) (bool, error) {
	n, err := s.client.Count(ctx, CollectionName(userID), MatchKey(keyContentKey, contentKey))
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, memory.Unavailable("qdrant contains", err)
	}
	return n > 0, nil
}

func (s *QdrantStore) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.client.Count(ctx, CollectionName(userID), nil)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, memory.Unavailable("qdrant count", err)
	}
	return n, nil
}

func (s *QdrantStore) Delete(ctx context.Context, userID string, match memory.Predicate) (int, error) {
	name := CollectionName(userID)
	frags, err := s.scrollAll(ctx, name, nil)
	if err != nil {
		return 0, memory.Unavailable("qdrant delete", err)
	}

	var ids []string
	for _, f := range frags {
		if match(f) {
			ids = append(ids, f.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.client.DeletePoints(ctx, name, ids); err != nil {
		return 0, memory.Unavailable("qdrant delete", err)
	}
	return len(ids), nil
}

// Clear drops the user's collection.
func (s *QdrantStore) Clear(ctx context.Context, userID string) (int, error) {
	n, err := s.Count(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.client.DeleteCollection(ctx, CollectionName(userID)); err != nil {
		return 0, memory.Unavailable("qdrant clear", err)
	}
	s.colls.Forget(userID)
	return n, nil
}

func (s *QdrantStore) Ping(ctx context.Context) error {
	if err := s.client.HealthCheck(ctx); err != nil {
		return memory.Unavailable("qdrant ping", err)
	}
	return nil
}

// scrollAll reads every point of a collection. A missing collection is empty.
func (s *QdrantStore) scrollAll(ctx context.Context, name string, filter *Filter) ([]models.Fragment, error) {
	var (
		out    []models.Fragment
		offset any
	)
	for {
		points, next, err := s.client.Scroll(ctx, name, filter, scrollPage, offset)
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			out = append(out, fromPayload(p.ID, p.Payload))
		}
		if next == nil || len(points) == 0 {
			return out, nil
		}
		offset = next
	}
}
