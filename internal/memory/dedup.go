package memory

import (
	"context"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// findDuplicate reports whether a fragment with the same content key
// already exists for the user in either tier. The returned ID is empty when
// the match came from the long-term tier, which only answers membership.
//
// An unreachable tier cannot veto a write, so its errors count as "not found".
func (e *Engine) findDuplicate(ctx context.Context, userID, key string) (string, bool) {
	cctx, cancel := e.callContext(ctx)
	frags, err := e.short.Get(cctx, userID)
	cancel()
	e.observe(models.TierShort, "dedup", userID, err)

	now := e.now()
	for _, f := range frags {
		if f.Expired(now) {
			continue
		}
		if fragmentKey(f) == key {
			return f.ID, true
		}
	}

	cctx, cancel = e.callContext(ctx)
	found, err := e.long.Contains(cctx, userID, key)
	cancel()
	e.observe(models.TierLong, "dedup", userID, err)
	return "", found
}

func fragmentKey(f models.Fragment) string {
	if f.ContentKey != "" {
		return f.ContentKey
	}
	return ContentKey(f.Content)
}
