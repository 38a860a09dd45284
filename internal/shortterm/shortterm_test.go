package shortterm

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

func frag(userID, id, content string, createdAt int64, expiresAt *int64) models.Fragment {
	return models.Fragment{
		ID:         id,
		UserID:     userID,
		Content:    content,
		ContentKey: memory.ContentKey(content),
		Metadata:   map[string]any{"source": "explicit"},
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}
}

// storeContract runs the behaviour every short-term adapter shares.
func storeContract(t *testing.T, s memory.ShortTermStore, setNow func(func() time.Time)) {
	ctx := context.Background()
	ttl := time.Hour

	t.Run("empty user", func(t *testing.T) {
		frags, err := s.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, frags)
		n, err := s.Count(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	require.NoError(t, s.Put(ctx, frag("u1", "a", "I like tea", 1, nil), ttl))
	require.NoError(t, s.Put(ctx, frag("u1", "b", "I like coffee", 2, nil), ttl))
	require.NoError(t, s.Put(ctx, frag("u2", "c", "I like tea", 3, nil), ttl))

	t.Run("get returns the bucket oldest first", func(t *testing.T) {
		frags, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, frags, 2)
		assert.Equal(t, "a", frags[0].ID)
		assert.Equal(t, "b", frags[1].ID)
		assert.Equal(t, models.TierShort, frags[0].Tier)
		assert.Equal(t, "explicit", frags[0].Metadata["source"])
	})

	t.Run("touch increments access count", func(t *testing.T) {
		touched, err := s.Touch(ctx, "u1", []string{"a", "missing"})
		require.NoError(t, err)
		require.Len(t, touched, 1)
		assert.Equal(t, 1, touched[0].AccessCount)

		touched, err = s.Touch(ctx, "u1", []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, 2, touched[0].AccessCount)

		frags, _ := s.Get(ctx, "u1")
		assert.Equal(t, 2, frags[0].AccessCount)
	})

	t.Run("delete by predicate", func(t *testing.T) {
		n, err := s.Delete(ctx, "u1", func(f models.Fragment) bool { return strings.Contains(f.Content, "coffee") })
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		count, _ := s.Count(ctx, "u1")
		assert.Equal(t, 1, count)
	})

	t.Run("per-fragment expiry", func(t *testing.T) {
		base := time.Now()
		exp := base.Add(time.Minute).UnixMilli()
		require.NoError(t, s.Put(ctx, frag("u3", "e", "short lived", 1, &exp), ttl))

		count, _ := s.Count(ctx, "u3")
		assert.Equal(t, 1, count)

		setNow(func() time.Time { return base.Add(2 * time.Minute) })
		defer setNow(time.Now)
		count, _ = s.Count(ctx, "u3")
		assert.Zero(t, count)
	})

	t.Run("clear only touches one user", func(t *testing.T) {
		n, err := s.Clear(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, _ := s.Count(ctx, "u1")
		assert.Zero(t, count)
		count, _ = s.Count(ctx, "u2")
		assert.Equal(t, 1, count)
	})

	assert.NoError(t, s.Ping(ctx))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	defer s.Close()

	storeContract(t, s, func(now func() time.Time) { s.now = now })

	t.Run("bucket ttl", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, frag("ttl", "x", "gone soon", 1, nil), time.Minute))
		assert.True(t, mr.Exists(userKey("ttl")))

		mr.FastForward(2 * time.Minute)
		assert.False(t, mr.Exists(userKey("ttl")))
		frags, err := s.Get(ctx, "ttl")
		require.NoError(t, err)
		assert.Empty(t, frags)
	})

	t.Run("corrupt entries are dropped", func(t *testing.T) {
		ctx := context.Background()
		mr.HSet(userKey("bad"), "junk", "{not json")
		frags, err := s.Get(ctx, "bad")
		require.NoError(t, err)
		assert.Empty(t, frags)
		assert.False(t, mr.Exists(userKey("bad")))
	})
}

// clearAfterRead deletes key on the server right after the first HMGET,
// the way an expiry or a concurrent Clear would.
type clearAfterRead struct {
	mr   *miniredis.Miniredis
	key  string
	done bool
}

func (h *clearAfterRead) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *clearAfterRead) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if cmd.Name() == "hmget" && !h.done {
			h.done = true
			h.mr.Del(h.key)
		}
		return err
	}
}

func (h *clearAfterRead) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisTouchAfterClear(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(rdb)
	defer s.Close()

	require.NoError(t, s.Put(ctx, frag("u1", "a", "likes tea", 1, nil), time.Hour))

	t.Run("cleared bucket", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, frag("cleared", "a", "likes tea", 1, nil), time.Hour))
		_, err := s.Clear(ctx, "cleared")
		require.NoError(t, err)

		touched, err := s.Touch(ctx, "cleared", []string{"a"})
		require.NoError(t, err)
		assert.Empty(t, touched)
		assert.False(t, mr.Exists(userKey("cleared")))
	})

	t.Run("cleared between read and write", func(t *testing.T) {
		rdb.AddHook(&clearAfterRead{mr: mr, key: userKey("u1")})

		touched, err := s.Touch(ctx, "u1", []string{"a"})
		require.NoError(t, err)
		assert.Empty(t, touched)
		assert.False(t, mr.Exists(userKey("u1")))
	})
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewRedisStoreFromClient(rdb)
	mr.Close()

	ctx := context.Background()
	assert.ErrorIs(t, s.Put(ctx, frag("u1", "a", "x", 1, nil), time.Hour), memory.ErrBackendUnavailable)
	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, memory.ErrBackendUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), memory.ErrBackendUnavailable)
}

func TestCacheStore(t *testing.T) {
	s, err := NewCacheStore(100)
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s, func(now func() time.Time) { s.now = now })

	t.Run("concurrent puts share one bucket", func(t *testing.T) {
		ctx := context.Background()
		done := make(chan struct{})
		for i := 0; i < 10; i++ {
			go func(i int) {
				defer func() { done <- struct{}{} }()
				_ = s.Put(ctx, frag("many", fmt.Sprint(i), fmt.Sprintf("fact %d", i), int64(i), nil), time.Hour)
			}(i)
		}
		for i := 0; i < 10; i++ {
			<-done
		}
		n, _ := s.Count(ctx, "many")
		assert.Equal(t, 10, n)
	})
}
