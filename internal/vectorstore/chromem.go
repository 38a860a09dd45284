package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/embedding"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// ChromemStore is the long-term tier backed by chromem-go, an embedded
// vector database. Each user gets their own collection.
type ChromemStore struct {
	db          *chromem.DB
	embedder    embedding.Embedder
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
	probe       []float32
}

// NewChromemStore opens a chromem database. An empty path keeps everything
// in memory; otherwise the collections are persisted under path.
func NewChromemStore(path string, embedder embedding.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	// Uniform unit vector used to enumerate a collection; every stored
	// document is a nearest neighbour candidate for it.
	probe := make([]float32, embedder.Dimensions())
	v := float32(1 / math.Sqrt(float64(len(probe))))
	for i := range probe {
		probe[i] = v
	}

	return &ChromemStore{
		db:          db,
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
		probe:       probe,
	}, nil
}

func (s *ChromemStore) collection(userID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[userID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, ok := s.collections[userID]; ok {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(CollectionName(userID), nil, s.embedder.Embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[userID] = col
	return col, nil
}

func (s *ChromemStore) Put(ctx context.Context, f models.Fragment) error {
	col, err := s.collection(f.UserID)
	if err != nil {
		return memory.Unavailable("chromem put", err)
	}
	vec, err := s.embedder.Embed(ctx, f.Content)
	if err != nil {
		return memory.Unavailable("chromem embed", err)
	}
	md, err := toMetadata(f)
	if err != nil {
		return fmt.Errorf("chromem put: encode metadata: %w", err)
	}

	doc := chromem.Document{
		ID:        f.ID,
		Content:   f.Content,
		Embedding: vec,
		Metadata:  md,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return memory.Unavailable("chromem put", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, userID, query string, limit int) ([]models.ScoredFragment, error) {
	if query == "" {
		frags, err := s.all(ctx, userID, nil)
		if err != nil {
			return nil, memory.Unavailable("chromem list", err)
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

	col, err := s.collection(userID)
	if err != nil {
		return nil, memory.Unavailable("chromem search", err)
	}
	n := min(limit, col.Count())
	if n == 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, memory.Unavailable("chromem embed", err)
	}
	results, err := col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, memory.Unavailable("chromem search", err)
	}

	out := make([]models.ScoredFragment, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredFragment{
			Fragment: fromMetadata(r.ID, r.Content, r.Metadata),
			Score:    float64(r.Similarity),
		})
	}
	return out, nil
}

func (s *ChromemStore) Contains(ctx context.Context, userID, contentKey string) (bool, error) {
	frags, err := s.all(ctx, userID, map[string]string{keyContentKey: contentKey})
	if err != nil {
		return false, memory.Unavailable("chromem contains", err)
	}
	return len(frags) > 0, nil
}

func (s *ChromemStore) Count(_ context.Context, userID string) (int, error) {
	col, err := s.collection(userID)
	if err != nil {
		return 0, memory.Unavailable("chromem count", err)
	}
	return col.Count(), nil
}

func (s *ChromemStore) Delete(ctx context.Context, userID string, match memory.Predicate) (int, error) {
	frags, err := s.all(ctx, userID, nil)
	if err != nil {
		return 0, memory.Unavailable("chromem delete", err)
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

	col, err := s.collection(userID)
	if err != nil {
		return 0, memory.Unavailable("chromem delete", err)
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, memory.Unavailable("chromem delete", err)
	}
	return len(ids), nil
}

func (s *ChromemStore) Clear(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[userID]
	if !ok {
		col = s.db.GetCollection(CollectionName(userID), s.embedder.Embed)
	}
	if col == nil {
		return 0, nil
	}
	n := col.Count()
	if err := s.db.DeleteCollection(CollectionName(userID)); err != nil {
		return 0, memory.Unavailable("chromem clear", err)
	}
	delete(s.collections, userID)
	return n, nil
}

// Ping always succeeds; the database lives in-process.
func (s *ChromemStore) Ping(context.Context) error {
	return nil
}

// all returns every document in the user's collection matching where.
func (s *ChromemStore) all(ctx context.Context, userID string, where map[string]string) ([]models.Fragment, error) {
	col, err := s.collection(userID)
	if err != nil {
		return nil, err
	}
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	results, err := col.QueryEmbedding(ctx, s.probe, n, where, nil)
	if err != nil {
		return nil, err
	}
	frags := make([]models.Fragment, 0, len(results))
	for _, r := range results {
		frags = append(frags, fromMetadata(r.ID, r.Content, r.Metadata))
	}
	return frags, nil
}
