package shortterm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// bucket holds one user's fragments.
type bucket struct {
	mu    sync.Mutex
	items map[string]models.Fragment
}

// CacheStore is an in-process short-term tier on a ristretto cache. Each
// user is one cache entry of cost 1, so maxUsers bounds memory; the least
// valuable buckets are evicted under pressure like an expired TTL.
type CacheStore struct {
	cache *ristretto.Cache
	// mu serialises bucket creation so concurrent first writes share a bucket.
	mu  sync.Mutex
	now func() time.Time
}

func NewCacheStore(maxUsers int64) (*CacheStore, error) {
	if maxUsers <= 0 {
		maxUsers = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxUsers * 10,
		MaxCost:            maxUsers,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &CacheStore{cache: cache, now: time.Now}, nil
}

func (s *CacheStore) bucket(userID string) (*bucket, bool) {
	v, ok := s.cache.Get(userID)
	if !ok {
		return nil, false
	}
	b, ok := v.(*bucket)
	return b, ok
}

func (s *CacheStore) Put(_ context.Context, f models.Fragment, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucket(f.UserID)
	if !ok {
		b = &bucket{items: map[string]models.Fragment{}}
	}
	b.mu.Lock()
	b.items[f.ID] = f.Clone()
	b.mu.Unlock()

	if !s.cache.SetWithTTL(f.UserID, b, 1, ttl) {
		return memory.Unavailable("cache put", fmt.Errorf("set dropped for user %s", f.UserID))
	}
	// Make the write visible to the next Get.
	s.cache.Wait()
	return nil
}

func (s *CacheStore) Get(_ context.Context, userID string) ([]models.Fragment, error) {
	b, ok := s.bucket(userID)
	if !ok {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return s.snapshot(b), nil
}

func (s *CacheStore) Count(ctx context.Context, userID string) (int, error) {
	frags, err := s.Get(ctx, userID)
	return len(frags), err
}

func (s *CacheStore) Delete(_ context.Context, userID string, match memory.Predicate) (int, error) {
	b, ok := s.bucket(userID)
	if !ok {
		return 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, f := range s.snapshot(b) {
		if match(f) {
			delete(b.items, f.ID)
			n++
		}
	}
	return n, nil
}

func (s *CacheStore) Clear(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucket(userID)
	if !ok {
		return 0, nil
	}
	b.mu.Lock()
	n := len(s.snapshot(b))
	b.mu.Unlock()

	s.cache.Del(userID)
	s.cache.Wait()
	return n, nil
}

func (s *CacheStore) Touch(_ context.Context, userID string, ids []string) ([]models.Fragment, error) {
	b, ok := s.bucket(userID)
	if !ok {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []models.Fragment
	for _, id := range ids {
		f, ok := b.items[id]
		if !ok {
			continue
		}
		f.AccessCount++
		b.items[id] = f
		out = append(out, f.Clone())
	}
	return out, nil
}

func (s *CacheStore) Ping(context.Context) error {
	return nil
}

// Close stops the cache's background goroutines.
func (s *CacheStore) Close() {
	s.cache.Close()
}

// snapshot returns copies of the live fragments, oldest first, and drops
// expired ones from the bucket. Caller holds b.mu.
func (s *CacheStore) snapshot(b *bucket) []models.Fragment {
	frags := make([]models.Fragment, 0, len(b.items))
	for _, f := range b.items {
		c := f.Clone()
		c.Tier = models.TierShort
		frags = append(frags, c)
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].CreatedAt < frags[j].CreatedAt })

	frags, expired := live(frags, s.now())
	for _, id := range expired {
		delete(b.items, id)
	}
	return frags
}
