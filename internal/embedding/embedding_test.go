package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/store"
)

func fakeOllamaServer(dim int, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			calls.Add(1)
			var req embedRequest
			json.NewDecoder(r.Body).Decode(&req)
			h := sha256.Sum256([]byte(req.Input))
			vec := make([]float32, dim)
			for i := range vec {
				vec[i] = float32(h[i%32]) / 255.0
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{vec}})
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaClient(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	srv := fakeOllamaServer(8, &calls)
	defer srv.Close()

	t.Run("embeds text", func(t *testing.T) {
		c := NewOllamaClient(srv.URL, "nomic-embed-text", 8)
		vec, err := c.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.Len(t, vec, 8)
		assert.NoError(t, c.HealthCheck(ctx))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		c := NewOllamaClient(srv.URL, "nomic-embed-text", 16)
		_, err := c.Embed(ctx, "hello")
		assert.ErrorContains(t, err, "want 16")
	})

	t.Run("server error", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer bad.Close()
		c := NewOllamaClient(bad.URL, "missing", 8)
		_, err := c.Embed(ctx, "hello")
		assert.ErrorContains(t, err, "status 404")
	})
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	srv := fakeOllamaServer(8, &calls)
	defer srv.Close()

	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()
	cache := store.NewEmbeddingCacheStore(db)

	e := NewCachedEmbedder(NewOllamaClient(srv.URL, "m1", 8), cache, "m1", nil)
	first, err := e.Embed(ctx, "Name: Alice")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "Name: Alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	// A different model must not reuse the cached vector.
	other := NewCachedEmbedder(NewOllamaClient(srv.URL, "m2", 8), cache, "m2", nil)
	_, err = other.Embed(ctx, "Name: Alice")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	t.Run("unreadable cache falls through", func(t *testing.T) {
		broken, err := store.Open(filepath.Join(t.TempDir(), "broken.db"))
		require.NoError(t, err)
		require.NoError(t, broken.Close())

		e := NewCachedEmbedder(NewOllamaClient(srv.URL, "m1", 8), store.NewEmbeddingCacheStore(broken), "m1", nil)
		vec, err := e.Embed(ctx, "Name: Bob")
		require.NoError(t, err)
		assert.Len(t, vec, 8)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(64)
	assert.Equal(t, 64, h.Dimensions())

	a1, _ := h.Embed(ctx, "I live in Lisbon")
	a2, _ := h.Embed(ctx, "I live in Lisbon")
	assert.Equal(t, a1, a2)
	assert.InDelta(t, 1.0, CosineSimilarity(a1, a1), 1e-5)

	near, _ := h.Embed(ctx, "lisbon is where I live")
	far, _ := h.Embed(ctx, "quarterly revenue projections")
	assert.Greater(t, CosineSimilarity(a1, near), CosineSimilarity(a1, far))

	empty, _ := h.Embed(ctx, "")
	assert.Len(t, empty, 64)
}

func TestVectorBytesRoundTrip(t *testing.T) {
	v := []float32{0.1, -2.5, 3}
	assert.Equal(t, v, BytesToFloat32(Float32ToBytes(v)))
	assert.Nil(t, BytesToFloat32([]byte{1, 2, 3}))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
}
