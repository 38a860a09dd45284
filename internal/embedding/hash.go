package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder produces deterministic embeddings without a model. Each word
// seeds a pseudo-random vector and the text embedding is their normalized
// sum, so texts sharing words land close together.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (h *HashEmbedder) Dimensions() int { return h.dimensions }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimensions)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		words = []string{""}
	}
	for _, w := range words {
		f := fnv.New64a()
		f.Write([]byte(w))
		seed := f.Sum64()
		for i := range vec {
			// LCG step, mapped to [-1, 1].
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}
	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
