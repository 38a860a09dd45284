package learning

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/metrics"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// MemoryWriter is the part of the memory engine the processor needs.
type MemoryWriter interface {
	Write(ctx context.Context, userID, content string, opts models.WriteOptions) *models.WriteResult
	Stats(ctx context.Context, userID string) models.MemoryTotals
}

// InteractionRecorder persists raw interactions for analytics.
type InteractionRecorder interface {
	Insert(ctx context.Context, in *models.Interaction) (string, error)
}

// Processor turns a finished exchange into stored fragments.
type Processor struct {
	memory  MemoryWriter
	audit   InteractionRecorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProcessor creates a processor. audit may be nil.
func NewProcessor(mem MemoryWriter, audit InteractionRecorder, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		memory:  mem,
		audit:   audit,
		metrics: m,
		logger:  logger,
	}
}

// Process records the interaction, extracts facts from the user message and
// writes each one to the short-term tier. It never fails: problems are
// logged and reflected in the counts.
func (p *Processor) Process(ctx context.Context, in *models.Interaction) models.ProcessResult {
	var res models.ProcessResult
	if in == nil || in.UserID == "" || in.UserMessage == "" {
		return res
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	source := in.Source
	if source == "" {
		source = models.SourceLearning
	}

	if p.audit != nil {
		if _, err := p.audit.Insert(ctx, in); err != nil {
			p.logger.Warn("interaction audit failed", "user_id", in.UserID, "op", "record_interaction", "error", err)
		}
	}
	if in.ResponseTime > 0 {
		p.metrics.InteractionResponse(in.ResponseTime)
	}

	for _, fact := range Extract(in.UserMessage) {
		md := map[string]any{
			"source":    source,
			"timestamp": in.Timestamp.UTC().Format(time.RFC3339),
		}
		if in.ConversationID != "" {
			md["conversation_id"] = in.ConversationID
		}
		wr := p.memory.Write(ctx, in.UserID, fact, models.WriteOptions{Metadata: md})
		if wr.Stored {
			res.NewMemories++
		}
	}

	res.Processed = true
	res.Totals = p.memory.Stats(ctx, in.UserID)
	p.logger.Debug("processed interaction",
		"user_id", in.UserID,
		"conversation_id", in.ConversationID,
		"new_memories", res.NewMemories,
	)
	return res
}
