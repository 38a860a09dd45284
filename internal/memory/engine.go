package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/metrics"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/privacy"
)

// Config tunes the engine.
type Config struct {
	ShortTermTTL       time.Duration
	PromotionAccessMin int
	// StoreTimeout bounds every individual store call.
	StoreTimeout time.Duration
	DefaultLimit int
}

// DefaultConfig mirrors the service defaults.
var DefaultConfig = Config{
	ShortTermTTL:       24 * time.Hour,
	PromotionAccessMin: 3,
	StoreTimeout:       10 * time.Second,
	DefaultLimit:       5,
}

// Engine is the only component allowed to touch the two tiers. It decides
// where writes land, deduplicates, merges and ranks reads, and promotes
// frequently used short-term fragments.
//
// Engine never returns backend errors: failures are logged, counted and
// reported per tier in results.
type Engine struct {
	short   ShortTermStore
	long    LongTermStore
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates an engine over the two tiers.
func NewEngine(short ShortTermStore, long LongTermStore, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg.ShortTermTTL <= 0 {
		cfg.ShortTermTTL = DefaultConfig.ShortTermTTL
	}
	if cfg.PromotionAccessMin <= 0 {
		cfg.PromotionAccessMin = DefaultConfig.PromotionAccessMin
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultConfig.StoreTimeout
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig.DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		short:   short,
		long:    long,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Write stores content for a user. It always targets the short-term tier and
// also the long-term tier when opts.LongTerm is set. Content already present
// in either tier (after normalization) is not stored again.
func (e *Engine) Write(ctx context.Context, userID, content string, opts models.WriteOptions) *models.WriteResult {
	res := &models.WriteResult{TierErrors: map[models.Tier]string{}}

	cleaned, ok := privacy.Clean(content)
	if !ok {
		res.SkipReason = "content_private"
		if strings.TrimSpace(content) == "" {
			res.SkipReason = "content_empty"
		}
		return res
	}
	if userID == "" {
		res.SkipReason = "user_missing"
		return res
	}

	key := ContentKey(cleaned)
	if id, found := e.findDuplicate(ctx, userID, key); found {
		res.ID = id
		res.Deduplicated = true
		e.logger.Debug("duplicate fragment skipped", "user_id", userID, "id", id)
		return res
	}

	now := e.now()
	frag := models.Fragment{
		ID:         uuid.New().String(),
		UserID:     userID,
		Content:    cleaned,
		ContentKey: key,
		Metadata:   withTimestamp(opts.Metadata, now),
		CreatedAt:  now.UnixMilli(),
	}
	res.ID = frag.ID

	short := frag.Clone()
	short.Tier = models.TierShort
	expiresAt := now.Add(e.cfg.ShortTermTTL).UnixMilli()
	short.ExpiresAt = &expiresAt

	var wg sync.WaitGroup
	var mu sync.Mutex
	record := func(tier models.Tier, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.TierErrors[tier] = err.Error()
			return
		}
		res.Tiers = append(res.Tiers, tier)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		cctx, cancel := e.callContext(ctx)
		defer cancel()
		err := e.short.Put(cctx, short, e.cfg.ShortTermTTL)
		e.observe(models.TierShort, "put", userID, err)
		record(models.TierShort, err)
	}()

	if opts.LongTerm {
		long := frag.Clone()
		long.Tier = models.TierLong
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := e.callContext(ctx)
			defer cancel()
			err := e.long.Put(cctx, long)
			e.observe(models.TierLong, "put", userID, err)
			record(models.TierLong, err)
		}()
	}
	wg.Wait()

	sort.Slice(res.Tiers, func(i, j int) bool { return res.Tiers[i] > res.Tiers[j] })
	res.Stored = len(res.Tiers) > 0
	if res.Partial() {
		e.logger.Warn("partial write", "user_id", userID, "id", frag.ID, "errors", res.TierErrors)
	}
	return res
}

// Retrieve returns the fragments most relevant to req.Query, merged from
// both tiers, scored with Score, filtered by req.Threshold (inclusive),
// sorted by score then recency, and truncated to req.Limit.
func (e *Engine) Retrieve(ctx context.Context, req models.RetrievalRequest) *models.RetrievalResult {
	return e.retrieve(ctx, req, true)
}

// List returns the user's fragments, newest first, regardless of relevance.
// Listing does not count as an access.
func (e *Engine) List(ctx context.Context, userID string, limit int) *models.RetrievalResult {
	return e.retrieve(ctx, models.RetrievalRequest{UserID: userID, Limit: limit}, false)
}

func (e *Engine) retrieve(ctx context.Context, req models.RetrievalRequest, access bool) *models.RetrievalResult {
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	threshold := req.Threshold
	if threshold < 0 {
		threshold = 0
	}
	res := &models.RetrievalResult{Fragments: []models.ScoredFragment{}}
	if req.UserID == "" {
		return res
	}

	var (
		wg        sync.WaitGroup
		shortHits []models.Fragment
		longHits  []models.ScoredFragment
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cctx, cancel := e.callContext(ctx)
		defer cancel()
		frags, err := e.short.Get(cctx, req.UserID)
		e.observe(models.TierShort, "get", req.UserID, err)
		shortHits = frags
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := e.callContext(ctx)
		defer cancel()
		frags, err := e.long.Search(cctx, req.UserID, req.Query, candidatePool(limit))
		e.observe(models.TierLong, "search", req.UserID, err)
		longHits = frags
	}()
	wg.Wait()

	now := e.now()
	seen := make(map[string]bool, len(shortHits)+len(longHits))
	var candidates []models.ScoredFragment
	add := func(f models.Fragment, tier models.Tier) {
		if f.UserID != "" && f.UserID != req.UserID {
			return
		}
		if f.Expired(now) {
			return
		}
		key := fragmentKey(f)
		if seen[key] {
			return
		}
		seen[key] = true
		f.Tier = tier
		candidates = append(candidates, models.ScoredFragment{
			Fragment: f,
			Score:    Score(f.Content, req.Query),
		})
	}
	for _, f := range shortHits {
		add(f, models.TierShort)
	}
	for _, sf := range longHits {
		add(sf.Fragment, models.TierLong)
	}

	for _, c := range candidates {
		if c.Score >= threshold {
			res.Fragments = append(res.Fragments, c)
		}
	}
	sort.SliceStable(res.Fragments, func(i, j int) bool {
		a, b := res.Fragments[i], res.Fragments[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.CreatedAt > b.CreatedAt
	})
	if len(res.Fragments) > limit {
		res.Fragments = res.Fragments[:limit]
	}

	var touched []string
	for _, f := range res.Fragments {
		switch f.Tier {
		case models.TierShort:
			res.Sources.ShortTerm++
			touched = append(touched, f.ID)
		case models.TierLong:
			res.Sources.LongTerm++
		}
	}
	e.metrics.Retrieved(len(res.Fragments))

	if access && len(touched) > 0 {
		e.promote(ctx, req.UserID, touched)
	}
	return res
}

// Delete removes fragments whose content matches query: equal after
// normalization when exact is set, a case-insensitive substring otherwise.
func (e *Engine) Delete(ctx context.Context, userID, query string, exact bool) *models.DeleteResult {
	res := &models.DeleteResult{TierErrors: map[models.Tier]string{}}
	if userID == "" || strings.TrimSpace(query) == "" {
		return res
	}
	return e.deleteMatching(ctx, userID, matcher(query, exact), "delete")
}

// Forget removes the fragment whose normalized content equals content.
func (e *Engine) Forget(ctx context.Context, userID, content string) *models.DeleteResult {
	return e.Delete(ctx, userID, content, true)
}

// Clear removes every fragment of a user from both tiers.
func (e *Engine) Clear(ctx context.Context, userID string) *models.DeleteResult {
	res := &models.DeleteResult{TierErrors: map[models.Tier]string{}}
	if userID == "" {
		return res
	}

	var (
		wg                sync.WaitGroup
		shortErr, longErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cctx, cancel := e.callContext(ctx)
		defer cancel()
		res.ShortTerm, shortErr = e.short.Clear(cctx, userID)
		e.observe(models.TierShort, "clear", userID, shortErr)
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := e.callContext(ctx)
		defer cancel()
		res.LongTerm, longErr = e.long.Clear(cctx, userID)
		e.observe(models.TierLong, "clear", userID, longErr)
	}()
	wg.Wait()

	if shortErr != nil {
		res.TierErrors[models.TierShort] = shortErr.Error()
	}
	if longErr != nil {
		res.TierErrors[models.TierLong] = longErr.Error()
	}

	e.logger.Info("cleared memories", "user_id", userID, "short_term", res.ShortTerm, "long_term", res.LongTerm)
	return res
}

// Stats counts a user's fragments per tier. Unavailable tiers count as zero.
func (e *Engine) Stats(ctx context.Context, userID string) models.MemoryTotals {
	var totals models.MemoryTotals
	if userID == "" {
		return totals
	}

	cctx, cancel := e.callContext(ctx)
	n, err := e.short.Count(cctx, userID)
	cancel()
	e.observe(models.TierShort, "count", userID, err)
	totals.ShortTerm = n

	cctx, cancel = e.callContext(ctx)
	n, err = e.long.Count(cctx, userID)
	cancel()
	e.observe(models.TierLong, "count", userID, err)
	totals.LongTerm = n

	totals.Total = totals.ShortTerm + totals.LongTerm
	return totals
}

// Health pings both tiers.
func (e *Engine) Health(ctx context.Context) (shortErr, longErr error) {
	cctx, cancel := e.callContext(ctx)
	defer cancel()
	return e.short.Ping(cctx), e.long.Ping(cctx)
}

// DefaultLimit is the limit applied when a request does not set one.
func (e *Engine) DefaultLimit() int {
	return e.cfg.DefaultLimit
}

func (e *Engine) deleteMatching(ctx context.Context, userID string, match Predicate, op string) *models.DeleteResult {
	res := &models.DeleteResult{TierErrors: map[models.Tier]string{}}

	cctx, cancel := e.callContext(ctx)
	n, err := e.short.Delete(cctx, userID, match)
	cancel()
	e.observe(models.TierShort, op, userID, err)
	if err != nil {
		res.TierErrors[models.TierShort] = err.Error()
	}
	res.ShortTerm = n

	cctx, cancel = e.callContext(ctx)
	n, err = e.long.Delete(cctx, userID, match)
	cancel()
	e.observe(models.TierLong, op, userID, err)
	if err != nil {
		res.TierErrors[models.TierLong] = err.Error()
	}
	res.LongTerm = n

	return res
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.StoreTimeout)
}

func (e *Engine) observe(tier models.Tier, op, userID string, err error) {
	e.metrics.StoreOp(string(tier), op, err)
	if err != nil {
		e.logger.Warn("memory store degraded",
			"user_id", userID,
			"op", op,
			"tier", string(tier),
			"error", err,
		)
	}
}

func matcher(query string, exact bool) Predicate {
	if exact {
		key := ContentKey(query)
		return func(f models.Fragment) bool {
			return ContentKey(f.Content) == key
		}
	}
	needle := Normalize(query)
	return func(f models.Fragment) bool {
		return strings.Contains(Normalize(f.Content), needle)
	}
}

// candidatePool is how many long-term hits to fetch before re-ranking.
func candidatePool(limit int) int {
	n := limit * 4
	if n < 20 {
		n = 20
	}
	return n
}

func withTimestamp(md map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(md)+1)
	for k, v := range md {
		out[k] = v
	}
	if _, ok := out["timestamp"]; !ok {
		out["timestamp"] = now.UTC().Format(time.RFC3339)
	}
	return out
}
