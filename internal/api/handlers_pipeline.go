package api

import (
	"net/http"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/pipeline"
)

type pipelineRequest struct {
	Body *pipeline.Body `json:"body"`
	User *pipeline.User `json:"user"`
}

// PipelineHandler runs the chat filter for hosts that call it remotely.
type PipelineHandler struct {
	filter *pipeline.Filter
}

func NewPipelineHandler(f *pipeline.Filter) *PipelineHandler {
	return &PipelineHandler{filter: f}
}

// Inlet handles POST /api/pipeline/inlet
func (h *PipelineHandler) Inlet(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePipelineRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.filter.Inlet(r.Context(), req.Body, req.User))
}

// Outlet handles POST /api/pipeline/outlet
func (h *PipelineHandler) Outlet(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePipelineRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.filter.Outlet(r.Context(), req.Body, req.User))
}

func decodePipelineRequest(w http.ResponseWriter, r *http.Request) (*pipelineRequest, bool) {
	var req pipelineRequest
	ok := decodeRequest(w, r, &req, func() error {
		if req.Body == nil {
			return memory.Invalid("body is required")
		}
		return nil
	})
	if !ok {
		return nil, false
	}
	return &req, true
}
