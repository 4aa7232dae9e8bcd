package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a delivery job.
type JobStatus string

const (
	StatusQueued        JobStatus = "queued"
	StatusDownloading   JobStatus = "downloading"
	StatusParsing       JobStatus = "parsing"
	StatusRestructuring JobStatus = "restructuring"
	StatusConverting    JobStatus = "converting"
	StatusPublishing    JobStatus = "publishing"
	StatusCompleted     JobStatus = "completed"
	StatusFailed        JobStatus = "failed"
	StatusPartial       JobStatus = "partial"
	StatusDupSkipped    JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// Job tracks one webhook delivery from download to the last appended batch.
type Job struct {
	mu sync.Mutex

	ID        string `json:"job_id"`
	PageID    string `json:"page_id"`
	SourceURL string `json:"source_url"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	// StartMarker overrides the configured marker when set.
	StartMarker string `json:"start_marker,omitempty"`
	// Force delivers even if the ledger has seen this content.
	Force bool `json:"force"`
	// Direct fetches SourceURL as-is instead of through Drive.
	Direct bool `json:"direct"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks delivery progress.
type Progress struct {
	TotalBlocks      int      `json:"total_blocks"`
	BlocksDelivered  int      `json:"blocks_delivered"`
	BatchesDelivered int      `json:"batches_delivered"`
	Errors           []string `json:"errors"`
}

// NewJob creates a queued job for the file at sourceURL.
func NewJob(pageID, sourceURL string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		PageID:    pageID,
		SourceURL: sourceURL,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalBlocks records how many blocks the conversion produced.
func (j *Job) SetTotalBlocks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalBlocks = n
	j.UpdatedAt = time.Now()
}

// SetDelivered records what the publisher applied.
func (j *Job) SetDelivered(batches, blocks int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.BatchesDelivered = batches
	j.Progress.BlocksDelivered = blocks
	j.UpdatedAt = time.Now()
}

func (j *Job) setSource(filename, hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Filename = filename
	j.ContentHash = hash
	j.UpdatedAt = time.Now()
}

func (j *Job) setModel(model string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Model = model
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	PageID      string    `json:"page_id"`
	SourceURL   string    `json:"source_url"`
	Direct      bool      `json:"direct"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	Model       string    `json:"model,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		PageID:      j.PageID,
		SourceURL:   j.SourceURL,
		Direct:      j.Direct,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Model:       j.Model,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}
