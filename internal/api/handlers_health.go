package api

import (
	"net/http"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/store"
)

type HealthHandler struct {
	engine *memory.Engine
	db     *store.DB
}

// NewHealthHandler creates the health handler. db may be nil when the audit
// database is disabled.
func NewHealthHandler(engine *memory.Engine, db *store.DB) *HealthHandler {
	return &HealthHandler{engine: engine, db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status: "ok",
	}

	shortErr, longErr := h.engine.Health(r.Context())

	// Check short-term tier
	if shortErr != nil {
		resp.ShortTerm = models.ServiceCheck{Status: "error", Message: shortErr.Error()}
		resp.Status = "degraded"
	} else {
		resp.ShortTerm = models.ServiceCheck{Status: "ok"}
	}

	// Check long-term tier
	if longErr != nil {
		resp.LongTerm = models.ServiceCheck{Status: "error", Message: longErr.Error()}
		resp.Status = "degraded"
	} else {
		resp.LongTerm = models.ServiceCheck{Status: "ok"}
	}

	// Check DB
	switch {
	case h.db == nil:
		resp.DB = models.ServiceCheck{Status: "disabled"}
	default:
		if err := h.db.Ping(r.Context()); err != nil {
			resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
			resp.Status = "degraded"
		} else {
			resp.DB = models.ServiceCheck{Status: "ok"}
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
