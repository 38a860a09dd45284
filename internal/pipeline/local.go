package pipeline

import (
	"context"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// Retriever is satisfied by *memory.Engine.
type Retriever interface {
	Retrieve(ctx context.Context, req models.RetrievalRequest) *models.RetrievalResult
}

// InteractionProcessor is satisfied by *learning.Processor.
type InteractionProcessor interface {
	Process(ctx context.Context, in *models.Interaction) models.ProcessResult
}

// LocalMemory runs the filter against an in-process engine.
type LocalMemory struct {
	retriever Retriever
	processor InteractionProcessor
}

func NewLocalMemory(r Retriever, p InteractionProcessor) *LocalMemory {
	return &LocalMemory{retriever: r, processor: p}
}

func (m *LocalMemory) Retrieve(ctx context.Context, userID, query string, limit int, threshold float64) ([]string, error) {
	res := m.retriever.Retrieve(ctx, models.RetrievalRequest{
		UserID:    userID,
		Query:     query,
		Limit:     limit,
		Threshold: threshold,
	})
	if res == nil {
		return nil, nil
	}
	out := make([]string, 0, len(res.Fragments))
	for _, f := range res.Fragments {
		out = append(out, f.Content)
	}
	return out, nil
}

// Process never fails; the processor degrades internally.
func (m *LocalMemory) Process(ctx context.Context, in *models.Interaction) error {
	m.processor.Process(ctx, in)
	return nil
}
