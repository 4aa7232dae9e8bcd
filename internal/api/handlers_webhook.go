package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/docblocks/internal/drive"
	"github.com/dgallion1/docblocks/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBytes = 1 << 20

// webhookPayload is the subset of a Notion automation payload we read.
type webhookPayload struct {
	Data struct {
		ID         string `json:"id"`
		Properties struct {
			File struct {
				Files []webhookFile `json:"files"`
			} `json:"File"`
		} `json:"properties"`
	} `json:"data"`
}

type webhookFile struct {
	Name     string `json:"name"`
	External *struct {
		URL string `json:"url"`
	} `json:"external"`
	File *struct {
		URL string `json:"url"`
	} `json:"file"`
}

// source returns the download URL and whether it is fetched directly. An
// external file must be a Drive link. A file uploaded to Notion arrives as a
// pre-signed https link, which is fetched as-is unless it is a Drive link.
func (f webhookFile) source() (string, bool, error) {
	switch {
	case f.External != nil && clean(f.External.URL) != "":
		u := clean(f.External.URL)
		if _, err := drive.FileID(u); err != nil {
			return "", false, err
		}
		return u, false, nil
	case f.File != nil && clean(f.File.URL) != "":
		u := clean(f.File.URL)
		if _, err := drive.FileID(u); err == nil {
			return u, false, nil
		}
		u, err := drive.DirectURL(u)
		if err != nil {
			return "", false, err
		}
		return u, true, nil
	}
	return "", false, nil
}

func clean(u string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(u), ";"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	pageID := strings.TrimSpace(payload.Data.ID)
	if pageID == "" {
		jsonError(w, "no page id found in the request", http.StatusBadRequest)
		return
	}
	files := payload.Data.Properties.File.Files
	if len(files) == 0 {
		jsonError(w, "no files found in the request", http.StatusBadRequest)
		return
	}
	sourceURL, direct, err := files[0].source()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if sourceURL == "" {
		jsonError(w, "no valid url found in the file information", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(pageID, sourceURL)
	job.Direct = direct
	job.Force, _ = strconv.ParseBool(r.URL.Query().Get("force"))
	job.StartMarker = strings.TrimSpace(r.URL.Query().Get("start_marker"))

	if err := s.orchestrator.Submit(job); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrStopped) {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("webhook accepted", "job_id", job.ID, "page_id", pageID, "force", job.Force)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"page_id":  job.PageID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
