package models

// EmbeddingCacheEntry is a cached embedding keyed by the hash of its text.
type EmbeddingCacheEntry struct {
	ContentHash string
	Embedding   []byte
	Dimension   int
	Model       string
	UpdatedAt   int64
}
