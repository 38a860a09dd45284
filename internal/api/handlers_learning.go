package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// InteractionProcessor is satisfied by *learning.Processor.
type InteractionProcessor interface {
	Process(ctx context.Context, in *models.Interaction) models.ProcessResult
}

type LearningHandler struct {
	processor InteractionProcessor
}

func NewLearningHandler(p InteractionProcessor) *LearningHandler {
	return &LearningHandler{processor: p}
}

// ProcessInteraction handles POST /api/learning/process_interaction
func (h *LearningHandler) ProcessInteraction(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessInteractionRequest
	if !decodeRequest(w, r, &req, func() error { return validateInteraction(&req) }) {
		return
	}

	res := h.processor.Process(r.Context(), &models.Interaction{
		UserID:            req.UserID,
		ConversationID:    req.ConversationID,
		UserMessage:       req.UserMessage,
		AssistantResponse: req.AssistantResponse,
		ResponseTime:      req.ResponseTime,
		ToolsUsed:         req.ToolsUsed,
		Context:           req.Context,
		Timestamp:         time.Now().UTC(),
		Source:            req.Source,
	})

	writeJSON(w, http.StatusOK, models.ProcessInteractionResponse{
		Status:        models.StatusSuccess,
		Processed:     res.Processed,
		NewMemories:   res.NewMemories,
		TotalMemories: res.Totals,
	})
}
