// Package shortterm holds the volatile, TTL-bounded memory tier.
package shortterm

import (
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// live drops fragments whose own expiry has passed. Backend TTLs apply to a
// whole user bucket, so single fragments can outlive theirs until the next read.
func live(frags []models.Fragment, now time.Time) (kept []models.Fragment, expired []string) {
	kept = frags[:0]
	for _, f := range frags {
		if f.Expired(now) {
			expired = append(expired, f.ID)
			continue
		}
		kept = append(kept, f)
	}
	return kept, expired
}
