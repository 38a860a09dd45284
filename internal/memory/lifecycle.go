package memory

import (
	"context"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// promote bumps the access count of the returned short-term fragments and
// copies every fragment that reached the promotion threshold into the
// long-term tier. The short-term copy stays until its TTL runs out.
func (e *Engine) promote(ctx context.Context, userID string, ids []string) {
	cctx, cancel := e.callContext(ctx)
	touched, err := e.short.Touch(cctx, userID, ids)
	cancel()
	e.observe(models.TierShort, "touch", userID, err)
	if err != nil {
		return
	}

	for _, f := range touched {
		if f.AccessCount < e.cfg.PromotionAccessMin {
			continue
		}
		key := fragmentKey(f)

		cctx, cancel := e.callContext(ctx)
		exists, err := e.long.Contains(cctx, userID, key)
		cancel()
		if err != nil {
			e.observe(models.TierLong, "promote", userID, err)
			return
		}
		if exists {
			continue
		}

		long := f.Clone()
		long.Tier = models.TierLong
		long.ContentKey = key
		long.ExpiresAt = nil
		if long.Metadata == nil {
			long.Metadata = map[string]any{}
		}
		long.Metadata[models.SourcePromotedKey] = string(models.TierShort)

		cctx, cancel = e.callContext(ctx)
		err = e.long.Put(cctx, long)
		cancel()
		e.observe(models.TierLong, "promote", userID, err)
		if err != nil {
			return
		}
		e.logger.Info("promoted fragment", "user_id", userID, "id", f.ID, "access_count", f.AccessCount)
	}
}
