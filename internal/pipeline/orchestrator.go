package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docblocks/internal/blocks"
	"github.com/dgallion1/docblocks/internal/config"
	"github.com/dgallion1/docblocks/internal/ledger"
	"github.com/dgallion1/docblocks/internal/notion"
	"github.com/dgallion1/docblocks/internal/parser"
	"github.com/dgallion1/docblocks/internal/restructure"
)

var (
	// ErrQueueFull is returned by Submit when no worker slot is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("pipeline is stopped")
)

// Deps are the collaborators a worker talks to. Restructurer and Ledger
// may be nil.
type Deps struct {
	Drive        Downloader
	Restructurer restructure.Restructurer
	Notion       notion.Appender
	Ledger       *ledger.Ledger
}

// Orchestrator manages the delivery pipeline.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	deps  Deps
	pages *pageLocks
	log   *slog.Logger
	cfg   config.Config

	mu      sync.Mutex
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to run workers.
func NewOrchestrator(cfg config.Config, deps Deps, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		deps:  deps,
		pages: newPageLocks(),
		log:   log,
		cfg:   cfg,
	}
}

// BlockOptions maps the conversion settings onto blocks.Options.
func BlockOptions(cfg config.Config) blocks.Options {
	opts := blocks.Options{
		BoldHeading:  blocks.Heading2,
		PreserveBold: cfg.PreserveBold,
	}
	if cfg.BoldHeadingLevel == 1 {
		opts.BoldHeading = blocks.Heading1
	}
	return opts
}

func (o *Orchestrator) newWorker() *Worker {
	return NewWorker(o.deps, o.log, WorkerOptions{
		Blocks:          BlockOptions(o.cfg),
		Parser:          parser.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext},
		StartMarker:     o.cfg.StartMarker,
		MaxPromptTokens: o.cfg.RestructureMaxTokens,
	})
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.run(workerCtx, w, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

func (o *Orchestrator) run(ctx context.Context, w *Worker, job *Job) {
	unlock := o.pages.lock(job.PageID)
	defer unlock()
	w.Process(ctx, job)
}

// Stop gracefully shuts down the pipeline. Later Submits fail with
// ErrStopped; calling Stop again is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.mu.Unlock()

	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// WithPageLock runs fn while holding the lock workers take for pageID, so a
// synchronous delivery never interleaves with a queued job on the same page.
func (o *Orchestrator) WithPageLock(pageID string, fn func()) {
	unlock := o.pages.lock(pageID)
	defer unlock()
	fn()
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Notion returns the block appender for direct use by API handlers.
func (o *Orchestrator) Notion() notion.Appender {
	return o.deps.Notion
}

// Ledger returns the delivery ledger, or nil when it is disabled.
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.deps.Ledger
}
