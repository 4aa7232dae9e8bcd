package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docblocks/internal/config"
	"github.com/dgallion1/docblocks/internal/pipeline"
	"github.com/dgallion1/docblocks/internal/restructure"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Version is reported by the info and health endpoints.
var Version = "dev"

// Server is the HTTP API server for docblocks.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	llm          restructure.Restructurer
	stats        *restructure.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. llm and stats may be nil
// when restructuring is disabled.
func NewServer(orch *pipeline.Orchestrator, llm restructure.Restructurer, stats *restructure.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		llm:          llm,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.ServiceAPIKey, s.log))

		r.Post("/notion-webhook", s.handleWebhook)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Post("/api/convert", s.handleConvert)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/deliveries", s.handleListDeliveries)
		r.Delete("/api/deliveries/{pageID}", s.handleForgetDeliveries)
	})

	s.router = r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "docblocks: research papers to Notion blocks",
		"version": Version,
		"endpoints": map[string]string{
			"notion-webhook": "POST /notion-webhook",
			"job-status":     "GET /api/jobs/{jobID}/status",
			"convert":        "POST /api/convert",
			"deliveries":     "GET /api/deliveries",
			"llm-stats":      "GET /api/stats/llm",
			"health":         "GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     Version,
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
