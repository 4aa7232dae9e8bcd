package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/docblocks/internal/blocks"
	"github.com/dgallion1/docblocks/internal/notion"
	"github.com/dgallion1/docblocks/internal/pipeline"
)

type convertRequest struct {
	Text        string `json:"text"`
	PageID      string `json:"page_id"`
	StartMarker string `json:"start_marker"`
	DryRun      bool   `json:"dry_run"`
}

// handleConvert runs the conversion synchronously on text the caller already
// has. A dry run returns the blocks instead of publishing them.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxDownloadBytes)

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	doc := blocks.Document{Text: req.Text, StartMarker: req.StartMarker}
	if doc.StartMarker == "" {
		doc.StartMarker = s.cfg.StartMarker
	}
	opts := pipeline.BlockOptions(s.cfg)

	if req.DryRun {
		bs, err := blocks.Convert(doc, opts)
		if err != nil {
			convertError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total_blocks": len(bs),
			"blocks":       bs,
		})
		return
	}

	pageID := strings.TrimSpace(req.PageID)
	if pageID == "" {
		jsonError(w, "page_id is required unless dry_run is set", http.StatusBadRequest)
		return
	}

	var res notion.Result
	var err error
	s.orchestrator.WithPageLock(pageID, func() {
		res, err = notion.Deliver(r.Context(), s.orchestrator.Notion(), pageID, doc, opts)
	})
	if err != nil {
		var batchErr *notion.BatchDeliveryError
		if errors.As(err, &batchErr) {
			s.log.Error("convert delivery failed", "page_id", pageID, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":  err.Error(),
				"result": res,
			})
			return
		}
		convertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func convertError(w http.ResponseWriter, err error) {
	if errors.Is(err, blocks.ErrNoContentMarker) {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}
