// Package embedding turns text into vectors for the long-term tier.
package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// Embedder generates fixed-size embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ContentHash computes a SHA-256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
