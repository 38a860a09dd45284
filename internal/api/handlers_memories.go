package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

const defaultListLimit = 20

type MemoryHandler struct {
	engine    *memory.Engine
	threshold float64
}

// NewMemoryHandler creates the memory handlers. threshold is applied to
// retrievals that do not carry one.
func NewMemoryHandler(engine *memory.Engine, threshold float64) *MemoryHandler {
	return &MemoryHandler{engine: engine, threshold: threshold}
}

// Retrieve handles POST /api/memory/retrieve
func (h *MemoryHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if !decodeRequest(w, r, &req, func() error { return validateRetrieve(&req) }) {
		return
	}
	threshold := h.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	res := h.engine.Retrieve(r.Context(), models.RetrievalRequest{
		UserID:    req.UserID,
		Query:     req.Query,
		Limit:     req.Limit,
		Threshold: threshold,
	})
	writeJSON(w, http.StatusOK, toRetrieveResponse(res))
}

// List handles GET /api/memory/list/{user_id}
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := required("user_id", userID); err != nil {
		writeRequestError(w, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultListLimit)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRetrieveResponse(h.engine.List(r.Context(), userID, limit)))
}

// Save handles POST /api/memory/save
func (h *MemoryHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if !decodeRequest(w, r, &req, func() error { return validateSave(&req) }) {
		return
	}

	md := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		md[k] = v
	}
	if req.Category != "" {
		md["category"] = req.Category
	}
	if _, ok := md["source"]; !ok {
		md["source"] = models.SourceExplicit
	}

	res := h.engine.Write(r.Context(), req.UserID, req.Content, models.WriteOptions{
		Metadata: md,
		LongTerm: true,
	})

	switch {
	case res.SkipReason != "":
		writeJSON(w, http.StatusOK, models.SaveResponse{
			Status:  models.StatusSuccess,
			Message: "nothing stored: " + res.SkipReason,
		})
	case res.Deduplicated:
		writeJSON(w, http.StatusOK, models.SaveResponse{
			Status:  models.StatusSuccess,
			Message: "memory already exists",
			ID:      res.ID,
		})
	case !res.Stored:
		writeJSON(w, http.StatusServiceUnavailable, models.SaveResponse{
			Status:  models.StatusError,
			Message: "memory could not be stored",
			Error:   tierErrors(res.TierErrors),
		})
	case res.Partial():
		writeJSON(w, http.StatusOK, models.SaveResponse{
			Status:  models.StatusPartialSuccess,
			Message: "memory saved to " + joinTiers(res.Tiers),
			ID:      res.ID,
			Tiers:   res.Tiers,
			Error:   tierErrors(res.TierErrors),
		})
	default:
		writeJSON(w, http.StatusOK, models.SaveResponse{
			Status:  models.StatusSuccess,
			Message: "memory saved",
			ID:      res.ID,
			Tiers:   res.Tiers,
		})
	}
}

// Delete handles POST /api/memory/delete
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteRequest
	if !decodeRequest(w, r, &req, func() error { return validateDelete(&req) }) {
		return
	}

	writeDeleteResult(w, h.engine.Delete(r.Context(), req.UserID, req.Query, req.ExactMatch))
}

// Forget handles POST /api/memory/forget
func (h *MemoryHandler) Forget(w http.ResponseWriter, r *http.Request) {
	var req models.ForgetRequest
	if !decodeRequest(w, r, &req, func() error { return validateForget(&req) }) {
		return
	}

	writeDeleteResult(w, h.engine.Forget(r.Context(), req.UserID, req.Content))
}

// Clear handles POST /api/memory/clear
func (h *MemoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req models.ClearRequest
	if !decodeRequest(w, r, &req, func() error { return required("user_id", req.UserID) }) {
		return
	}
	if !req.Confirm {
		writeJSON(w, http.StatusBadRequest, models.DeleteResponse{
			Status:  models.StatusError,
			Message: "set confirm to true to clear all memories for this user",
		})
		return
	}

	writeDeleteResult(w, h.engine.Clear(r.Context(), req.UserID))
}

func writeDeleteResult(w http.ResponseWriter, res *models.DeleteResult) {
	resp := models.DeleteResponse{
		Status:       models.StatusSuccess,
		Message:      fmt.Sprintf("deleted %d memories", res.Total()),
		DeletedCount: res.Total(),
	}
	status := http.StatusOK
	switch len(res.TierErrors) {
	case 0:
	case 1:
		resp.Status = models.StatusPartialSuccess
		resp.Error = tierErrors(res.TierErrors)
	default:
		resp.Status = models.StatusError
		resp.Error = tierErrors(res.TierErrors)
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func toRetrieveResponse(res *models.RetrievalResult) models.RetrieveResponse {
	resp := models.RetrieveResponse{
		Status:   models.StatusSuccess,
		Memories: make([]models.MemoryResult, 0, len(res.Fragments)),
		Sources:  res.Sources,
	}
	for _, f := range res.Fragments {
		md := f.Metadata
		if md == nil {
			md = map[string]any{}
		}
		resp.Memories = append(resp.Memories, models.MemoryResult{
			Content:        f.Content,
			Metadata:       md,
			RelevanceScore: f.Score,
			Tier:           f.Tier,
		})
	}
	resp.Count = len(resp.Memories)
	return resp
}

// tierErrors renders per-tier failures as "long_term: ...; short_term: ...".
func tierErrors(errs map[models.Tier]string) string {
	parts := make([]string, 0, len(errs))
	for tier, msg := range errs {
		parts = append(parts, string(tier)+": "+msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func joinTiers(tiers []models.Tier) string {
	s := make([]string, len(tiers))
	for i, t := range tiers {
		s[i] = string(t)
	}
	return strings.Join(s, ", ")
}
