package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docblocks/internal/blocks"
	"github.com/dgallion1/docblocks/internal/chunker"
	"github.com/dgallion1/docblocks/internal/drive"
	"github.com/dgallion1/docblocks/internal/ledger"
	"github.com/dgallion1/docblocks/internal/notion"
	"github.com/dgallion1/docblocks/internal/parser"
)

// Downloader fetches the source file of a job. *drive.Client implements it.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (*drive.File, error)
	Fetch(ctx context.Context, rawURL string) (*drive.File, error)
}

// WorkerOptions holds the per-job conversion settings.
type WorkerOptions struct {
	Blocks      blocks.Options
	Parser      parser.Options
	StartMarker string

	// MaxPromptTokens skips restructuring for larger documents. Zero means
	// no limit.
	MaxPromptTokens int
}

// backoff is swapped out by tests.
var backoff = Backoff

// Worker processes a single delivery job.
type Worker struct {
	deps Deps
	log  *slog.Logger
	opts WorkerOptions
}

func NewWorker(deps Deps, log *slog.Logger, opts WorkerOptions) *Worker {
	return &Worker{deps: deps, log: log, opts: opts}
}

// Process runs the full delivery pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "page_id", job.PageID)

	// Phase 1: Download
	job.SetStatus(StatusDownloading, "downloading")
	download := w.deps.Drive.Download
	if job.Direct {
		download = w.deps.Drive.Fetch
	}
	file, err := download(ctx, job.SourceURL)
	if err != nil {
		log.Error("download failed", "error", err)
		job.AddError(fmt.Sprintf("download: %s", err))
		job.SetStatus(StatusFailed, "downloading")
		return
	}
	log = log.With("filename", file.Name)

	// Phase 2: Parse
	job.SetStatus(StatusParsing, "parsing")
	raw, err := parser.Extract(file.Name, file.Data, w.opts.Parser)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2.5: Dedup check on the extracted text. Restructured output is
	// not stable across calls, so it cannot be the key.
	hash := ledger.Hash(raw)
	job.setSource(file.Name, hash)
	if w.deps.Ledger != nil && !job.Force {
		prev, seen, err := w.deps.Ledger.Seen(job.PageID, hash)
		if err != nil {
			log.Warn("ledger lookup failed, proceeding", "error", err)
		} else if seen {
			log.Info("content already delivered, skipping", "previous_job_id", prev.JobID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 3: Restructure
	text := w.restructure(ctx, log, job, raw)

	// Phase 4: Convert
	job.SetStatus(StatusConverting, "converting")
	doc := blocks.Document{Text: text, StartMarker: w.startMarker(job)}
	bs, err := blocks.Convert(doc, w.opts.Blocks)
	if errors.Is(err, blocks.ErrNoContentMarker) && text != raw {
		log.Warn("restructured text lost the start marker, converting raw text")
		job.AddError("restructure: output has no start marker")
		doc.Text = raw
		bs, err = blocks.Convert(doc, w.opts.Blocks)
	}
	if err != nil {
		log.Error("convert failed", "error", err)
		job.AddError(fmt.Sprintf("convert: %s", err))
		job.SetStatus(StatusFailed, "converting")
		return
	}
	job.SetTotalBlocks(len(bs))
	log.Info("converted document", "blocks", len(bs))

	// Phase 5: Publish
	job.SetStatus(StatusPublishing, "publishing")
	res, err := notion.Publish(ctx, w.deps.Notion, job.PageID, bs)
	job.SetDelivered(res.BatchesDelivered, res.BlocksDelivered)
	if err != nil {
		log.Error("publish failed", "error", err, "blocks_delivered", res.BlocksDelivered)
		job.AddError(fmt.Sprintf("publish: %s", err))
		if res.BlocksDelivered > 0 {
			job.SetStatus(StatusPartial, "publishing")
		} else {
			job.SetStatus(StatusFailed, "publishing")
		}
		return
	}

	if w.deps.Ledger != nil {
		err := w.deps.Ledger.Record(ledger.Entry{
			PageID:      job.PageID,
			ContentHash: hash,
			JobID:       job.ID,
			Blocks:      res.BlocksDelivered,
		})
		if err != nil {
			log.Error("ledger write failed", "error", err)
			job.AddError(fmt.Sprintf("ledger: %s", err))
		}
	}

	log.Info("delivery complete", "blocks", res.BlocksDelivered, "batches", res.BatchesDelivered)
	job.SetStatus(StatusCompleted, "done")
}

// restructure returns the LLM-cleaned text, or raw when restructuring is
// disabled, skipped or fails.
func (w *Worker) restructure(ctx context.Context, log *slog.Logger, job *Job, raw string) string {
	r := w.deps.Restructurer
	if r == nil {
		return raw
	}
	if tokens := chunker.EstimateTokens(raw); w.opts.MaxPromptTokens > 0 && tokens > w.opts.MaxPromptTokens {
		log.Info("document too large to restructure", "tokens", tokens, "limit", w.opts.MaxPromptTokens)
		return raw
	}

	job.SetStatus(StatusRestructuring, "restructuring")
	job.setModel(r.Model())
	var out string
	var lastErr error
	for attempt := range MaxRetries {
		out, lastErr = r.Restructure(ctx, raw)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable restructure error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		log.Warn("restructure failed, using extracted text", "error", lastErr)
		job.AddError(fmt.Sprintf("restructure: %s", lastErr))
		return raw
	}
	return out
}

func (w *Worker) startMarker(job *Job) string {
	if job.StartMarker != "" {
		return job.StartMarker
	}
	return w.opts.StartMarker
}
