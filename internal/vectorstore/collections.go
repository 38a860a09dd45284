package vectorstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
)

const collectionPrefix = "memory_user_"

// CollectionName returns the collection holding a user's long-term
// fragments. User IDs are hashed so arbitrary strings (emails, names) map to
// valid collection names.
func CollectionName(userID string) string {
	h := sha256.Sum256([]byte(userID))
	return fmt.Sprintf("%s%x", collectionPrefix, h[:12])
}

// CollectionManager maps user IDs to Qdrant collections and ensures
// they are created on first write.
type CollectionManager struct {
	client *QdrantClient
	known  map[string]bool
	mu     sync.RWMutex
}

func NewCollectionManager(client *QdrantClient) *CollectionManager {
	return &CollectionManager{
		client: client,
		known:  make(map[string]bool),
	}
}

// EnsureForUser creates the collection for a user if it doesn't already
// exist. Results are cached in-memory.
func (m *CollectionManager) EnsureForUser(ctx context.Context, userID string) (string, error) {
	name := CollectionName(userID)

	m.mu.RLock()
	if m.known[name] {
		m.mu.RUnlock()
		return name, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if m.known[name] {
		return name, nil
	}

	if err := m.client.EnsureCollection(ctx, name); err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", name, err)
	}

	m.known[name] = true
	return name, nil
}

// Forget drops the cached state for a user after their collection is deleted.
func (m *CollectionManager) Forget(userID string) {
	m.mu.Lock()
	delete(m.known, CollectionName(userID))
	m.mu.Unlock()
}
