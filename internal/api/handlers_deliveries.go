package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDeliveries lists ledger entries, optionally for one page.
func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	l := s.orchestrator.Ledger()
	if l == nil {
		jsonError(w, "delivery ledger disabled", http.StatusServiceUnavailable)
		return
	}

	entries, err := l.List(r.URL.Query().Get("page_id"))
	if err != nil {
		jsonError(w, "failed to list deliveries: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": entries})
}

// handleForgetDeliveries drops a page's ledger entries so its next webhook
// is delivered again.
func (s *Server) handleForgetDeliveries(w http.ResponseWriter, r *http.Request) {
	l := s.orchestrator.Ledger()
	if l == nil {
		jsonError(w, "delivery ledger disabled", http.StatusServiceUnavailable)
		return
	}

	pageID := chi.URLParam(r, "pageID")
	n, err := l.Forget(pageID)
	if err != nil {
		jsonError(w, "failed to forget deliveries: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page_id":   pageID,
		"forgotten": n,
	})
}
