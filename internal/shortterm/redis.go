package shortterm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

const keyPrefix = "memory:short:"

// RedisConfig holds configuration for Redis connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps each user's fragments in one Redis hash keyed by
// fragment ID. The hash expires as a whole; every Put refreshes it.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisStore connects lazily; an unreachable server surfaces on the
// first call rather than at startup.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func userKey(userID string) string {
	return keyPrefix + userID
}

func (s *RedisStore) Put(ctx context.Context, f models.Fragment, ttl time.Duration) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("redis put: marshal fragment: %w", err)
	}
	key := userKey(f.UserID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, f.ID, data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return memory.Unavailable("redis put", err)
	}
	return nil
}

// Get returns the user's live fragments, oldest first.
func (s *RedisStore) Get(ctx context.Context, userID string) ([]models.Fragment, error) {
	frags, err := s.load(ctx, userID)
	if err != nil {
		return nil, memory.Unavailable("redis get", err)
	}
	return frags, nil
}

func (s *RedisStore) Count(ctx context.Context, userID string) (int, error) {
	frags, err := s.load(ctx, userID)
	if err != nil {
		return 0, memory.Unavailable("redis count", err)
	}
	return len(frags), nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string, match memory.Predicate) (int, error) {
	frags, err := s.load(ctx, userID)
	if err != nil {
		return 0, memory.Unavailable("redis delete", err)
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
	n, err := s.rdb.HDel(ctx, userKey(userID), ids...).Result()
	if err != nil {
		return 0, memory.Unavailable("redis delete", err)
	}
	return int(n), nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) (int, error) {
	frags, err := s.load(ctx, userID)
	if err != nil {
		return 0, memory.Unavailable("redis clear", err)
	}
	if err := s.rdb.Del(ctx, userKey(userID)).Err(); err != nil {
		return 0, memory.Unavailable("redis clear", err)
	}
	return len(frags), nil
}

// Touch increments access counts. The read and write run under WATCH, so a
// bucket that expires or is cleared in between is left alone. Concurrent
// touches may lose an increment; promotion only needs an approximate count.
func (s *RedisStore) Touch(ctx context.Context, userID string, ids []string) ([]models.Fragment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	key := userKey(userID)

	var out []models.Fragment
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		out = nil
		vals, err := tx.HMGet(ctx, key, ids...).Result()
		if err != nil {
			return err
		}

		var fields []any
		for _, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var f models.Fragment
			if err := json.Unmarshal([]byte(raw), &f); err != nil {
				continue
			}
			f.AccessCount++
			data, err := json.Marshal(f)
			if err != nil {
				continue
			}
			fields = append(fields, f.ID, data)
			out = append(out, f)
		}
		if len(fields) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields...)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, nil
	}
	if err != nil {
		return nil, memory.Unavailable("redis touch", err)
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return memory.Unavailable("redis ping", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) load(ctx context.Context, userID string) ([]models.Fragment, error) {
	key := userKey(userID)
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	frags := make([]models.Fragment, 0, len(raw))
	var corrupt []string
	for id, v := range raw {
		var f models.Fragment
		if err := json.Unmarshal([]byte(v), &f); err != nil {
			corrupt = append(corrupt, id)
			continue
		}
		f.Tier = models.TierShort
		frags = append(frags, f)
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].CreatedAt < frags[j].CreatedAt })

	frags, expired := live(frags, s.now())
	if stale := append(corrupt, expired...); len(stale) > 0 {
		// Best effort; a failed cleanup is retried on the next read.
		_ = s.rdb.HDel(ctx, key, stale...).Err()
	}
	return frags, nil
}
