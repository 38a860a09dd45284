package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/learning"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

const contextHeader = "Relevant information from previous conversations:"

// Memory is what the filter needs from the memory service. LocalMemory and
// HTTPMemory implement it.
type Memory interface {
	Retrieve(ctx context.Context, userID, query string, limit int, threshold float64) ([]string, error)
	Process(ctx context.Context, in *models.Interaction) error
}

// Submitter runs outlet persistence in the background. *learning.Dispatcher
// implements it.
type Submitter interface {
	Submit(name string, task learning.Task) bool
}

type Config struct {
	EnableRetrieval bool
	EnableLearning  bool
	MemoryLimit     int
	Threshold       float64
	MaxMemoryLength int
	// Timeout bounds each memory call made by inlet or outlet.
	Timeout time.Duration
}

var DefaultConfig = Config{
	EnableRetrieval: true,
	EnableLearning:  true,
	MemoryLimit:     5,
	Threshold:       0.1,
	MaxMemoryLength: 500,
	Timeout:         10 * time.Second,
}

// Filter wraps a single chat turn: Inlet injects remembered context before
// the model call, Outlet learns from the exchange afterwards. Neither ever
// fails the turn.
type Filter struct {
	mem    Memory
	cfg    Config
	async  Submitter
	logger *slog.Logger
	now    func() time.Time
}

// NewFilter creates a filter. A nil async runs outlet persistence inline.
func NewFilter(mem Memory, cfg Config, async Submitter, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultConfig.MemoryLimit
	}
	if cfg.MaxMemoryLength <= 0 {
		cfg.MaxMemoryLength = DefaultConfig.MaxMemoryLength
	}
	return &Filter{
		mem:    mem,
		cfg:    cfg,
		async:  async,
		logger: logger,
		now:    time.Now,
	}
}

// Inlet returns body with a system message carrying the user's relevant
// memories, if any were found.
func (f *Filter) Inlet(ctx context.Context, body *Body, user *User) (out *Body) {
	out = body
	if body == nil || !f.cfg.EnableRetrieval {
		return body
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("inlet panic recovered", "panic", fmt.Sprint(r))
			out = body
		}
	}()

	query := body.LatestUserMessage()
	if query == "" {
		return body
	}
	userID := f.UserID(user)

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	memories, err := f.mem.Retrieve(ctx, userID, query, f.cfg.MemoryLimit, f.cfg.Threshold)
	if err != nil {
		f.logger.Warn("inlet retrieval failed", "user_id", userID, "op", "inlet", "error", err)
		return body
	}
	if len(memories) == 0 {
		return body
	}

	body.injectSystem(f.formatContext(memories))
	f.logger.Debug("injected memories", "user_id", userID, "count", len(memories))
	return body
}

// Outlet hands the latest user/assistant exchange to the memory service and
// returns body unchanged.
func (f *Filter) Outlet(ctx context.Context, body *Body, user *User) (out *Body) {
	out = body
	if body == nil || !f.cfg.EnableLearning {
		return body
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("outlet panic recovered", "panic", fmt.Sprint(r))
			out = body
		}
	}()

	userMsg, assistantMsg := body.LastExchange()
	if userMsg == "" || assistantMsg == "" {
		return body
	}
	in := &models.Interaction{
		UserID:            f.UserID(user),
		ConversationID:    body.ConversationID,
		UserMessage:       userMsg,
		AssistantResponse: assistantMsg,
		Timestamp:         f.now().UTC(),
		Source:            models.SourcePipeline,
	}

	if f.async != nil {
		// The dispatcher applies its own timeout and logs drops.
		f.async.Submit("outlet", func(ctx context.Context) { f.process(ctx, in) })
		return body
	}

	// Detached from the chat request so a client hanging up does not cut
	// the write short, but still bounded.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.Timeout)
	defer cancel()
	f.process(pctx, in)
	return body
}

func (f *Filter) process(ctx context.Context, in *models.Interaction) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("outlet processing panic recovered", "user_id", in.UserID, "panic", fmt.Sprint(r))
		}
	}()
	if err := f.mem.Process(ctx, in); err != nil {
		f.logger.Warn("outlet processing failed", "user_id", in.UserID, "op", "outlet", "error", err)
	}
}

// UserID picks the first non-empty of id, email and name, falling back to
// an anonymous id stamped with the current time.
func (f *Filter) UserID(user *User) string {
	if user != nil {
		for _, v := range []string{user.ID, user.Email, user.Name} {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return fmt.Sprintf("anonymous_%d", f.now().Unix())
}

func (f *Filter) formatContext(memories []string) string {
	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i, m := range memories {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, truncate(m, f.cfg.MaxMemoryLength))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
