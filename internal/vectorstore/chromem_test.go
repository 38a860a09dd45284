package vectorstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/embedding"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

func TestChromemStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", embedding.NewHashEmbedder(64))
	require.NoError(t, err)

	t.Run("empty user", func(t *testing.T) {
		hits, err := s.Search(ctx, "nobody", "anything", 5)
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = s.Search(ctx, "nobody", "", 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	require.NoError(t, s.Put(ctx, fragment("u1", "I live in Lisbon", 100)))
	require.NoError(t, s.Put(ctx, fragment("u1", "I work at Acme", 200)))
	require.NoError(t, s.Put(ctx, fragment("u2", "I live in Oslo", 300)))

	t.Run("search is scoped to the user", func(t *testing.T) {
		hits, err := s.Search(ctx, "u1", "live in oslo", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, h := range hits {
			assert.Equal(t, "u1", h.UserID)
		}
	})

	t.Run("search round-trips metadata", func(t *testing.T) {
		hits, err := s.Search(ctx, "u1", "lisbon live", 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "I live in Lisbon", hits[0].Content)
		assert.Equal(t, int64(100), hits[0].CreatedAt)
		assert.Equal(t, models.SourceExplicit, hits[0].Metadata["source"])
	})

	t.Run("empty query lists newest first", func(t *testing.T) {
		hits, err := s.Search(ctx, "u1", "", 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "I work at Acme", hits[0].Content)
	})

	t.Run("contains", func(t *testing.T) {
		ok, err := s.Contains(ctx, "u1", memory.ContentKey("I work at acme"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Contains(ctx, "u1", memory.ContentKey("I live in Oslo"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete and clear", func(t *testing.T) {
		n, err := s.Delete(ctx, "u1", func(f models.Fragment) bool { return strings.Contains(f.Content, "Lisbon") })
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, _ := s.Count(ctx, "u1")
		assert.Equal(t, 1, count)

		n, err = s.Clear(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, _ = s.Count(ctx, "u1")
		assert.Zero(t, count)
		count, _ = s.Count(ctx, "u2")
		assert.Equal(t, 1, count)
	})
}

func TestChromemStorePersistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewChromemStore(dir, embedding.NewHashEmbedder(16))
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, fragment("u1", "Name: Alice", 1)))

	reopened, err := NewChromemStore(dir, embedding.NewHashEmbedder(16))
	require.NoError(t, err)
	ok, err := reopened.Contains(ctx, "u1", memory.ContentKey("name: alice"))
	require.NoError(t, err)
	assert.True(t, ok)
}
