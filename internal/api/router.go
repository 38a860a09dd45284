package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/metrics"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/pipeline"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/store"
)

// NewRouter creates the Chi router with all routes and middleware.
// filter and db may be nil.
func NewRouter(
	engine *memory.Engine,
	processor InteractionProcessor,
	filter *pipeline.Filter,
	db *store.DB,
	m *metrics.Metrics,
	threshold float64,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))
	r.Use(Metrics(m))

	// Handlers
	healthH := NewHealthHandler(engine, db)
	memoryH := NewMemoryHandler(engine, threshold)
	learningH := NewLearningHandler(processor)

	r.Get("/health", healthH.Health)
	r.Method("GET", "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/memory", func(r chi.Router) {
			r.Post("/retrieve", memoryH.Retrieve)
			r.Post("/save", memoryH.Save)
			r.Post("/delete", memoryH.Delete)
			r.Post("/forget", memoryH.Forget)
			r.Post("/clear", memoryH.Clear)
			r.Get("/list/{user_id}", memoryH.List)
		})

		r.Post("/learning/process_interaction", learningH.ProcessInteraction)

		if filter != nil {
			pipelineH := NewPipelineHandler(filter)
			r.Route("/pipeline", func(r chi.Router) {
				r.Post("/inlet", pipelineH.Inlet)
				r.Post("/outlet", pipelineH.Outlet)
			})
		}
	})

	return r
}
