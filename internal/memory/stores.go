package memory

import (
	"context"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// Predicate selects fragments for deletion.
type Predicate func(models.Fragment) bool

// ShortTermStore is the volatile, TTL-bounded tier. All fragments of a user
// live in one bucket; Get returns them unranked.
type ShortTermStore interface {
	Put(ctx context.Context, frag models.Fragment, ttl time.Duration) error
	Get(ctx context.Context, userID string) ([]models.Fragment, error)
	Count(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string, match Predicate) (int, error)
	Clear(ctx context.Context, userID string) (int, error)
	// Touch increments the access count of the given fragments and returns
	// their updated state. Unknown IDs are ignored.
	Touch(ctx context.Context, userID string, ids []string) ([]models.Fragment, error)
	Ping(ctx context.Context) error
}

// LongTermStore is the durable, semantically searchable tier.
type LongTermStore interface {
	Put(ctx context.Context, frag models.Fragment) error
	// Search returns up to limit fragments scored by backend similarity.
	// An empty query lists the user's fragments.
	Search(ctx context.Context, userID, query string, limit int) ([]models.ScoredFragment, error)
	Contains(ctx context.Context, userID, contentKey string) (bool, error)
	Count(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string, match Predicate) (int, error)
	Clear(ctx context.Context, userID string) (int, error)
	Ping(ctx context.Context) error
}
