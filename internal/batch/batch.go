package batch

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"subtitle-merger/internal/domain"
)

// ErrEmptyFolder is returned when adding a blank folder path.
var ErrEmptyFolder = errors.New("folder path is empty")

// ErrDuplicateFolder is returned when a folder is already queued.
var ErrDuplicateFolder = errors.New("folder already queued")

// ErrJobNotFound is returned for lookups of unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Batch owns the ordered job list for one run. Submission order is
// preserved for display and for sequential execution. Job fields are
// written only through the mutators below; readers get copies.
type Batch struct {
	mu   sync.RWMutex
	jobs []*domain.FolderJob
}

// New creates an empty batch.
func New() *Batch {
	return &Batch{}
}

// Add appends one folder as a pending job and returns its snapshot.
func (b *Batch) Add(folder string) (domain.FolderJob, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return domain.FolderJob{}, ErrEmptyFolder
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, job := range b.jobs {
		if job.FolderPath == folder {
			return domain.FolderJob{}, ErrDuplicateFolder
		}
	}

	job := &domain.FolderJob{
		ID:         uuid.NewString(),
		FolderPath: folder,
		Status:     domain.JobStatusPending,
	}
	b.jobs = append(b.jobs, job)
	return snapshot(job), nil
}

// Remove drops a pending job by folder path. Jobs that already started
// keep their place so recorded outcomes stay visible.
func (b *Batch) Remove(folder string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, job := range b.jobs {
		if job.FolderPath != folder {
			continue
		}
		if job.Status != domain.JobStatusPending {
			return fmt.Errorf("cannot remove job in status %s", job.Status)
		}
		b.jobs = append(b.jobs[:i], b.jobs[i+1:]...)
		return nil
	}
	return ErrJobNotFound
}

// Clear drops every job.
func (b *Batch) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = nil
}

// Len returns the number of queued jobs.
func (b *Batch) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.jobs)
}

// Jobs returns snapshots of all jobs in submission order.
func (b *Batch) Jobs() []domain.FolderJob {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.FolderJob, 0, len(b.jobs))
	for _, job := range b.jobs {
		out = append(out, snapshot(job))
	}
	return out
}

// Job returns a snapshot of one job by ID.
func (b *Batch) Job(id string) (domain.FolderJob, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if job := b.find(id); job != nil {
		return snapshot(job), true
	}
	return domain.FolderJob{}, false
}

// PendingIDs returns the IDs of jobs that have not started, in order.
func (b *Batch) PendingIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []string
	for _, job := range b.jobs {
		if job.Status == domain.JobStatusPending {
			out = append(out, job.ID)
		}
	}
	return out
}

// transition validates and applies one status change.
func (b *Batch) transition(id string, to domain.JobStatus, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job := b.find(id)
	if job == nil {
		return ErrJobNotFound
	}
	if !domain.ValidTransition(job.Status, to) {
		return fmt.Errorf("invalid transition: %s -> %s", job.Status, to)
	}

	job.Status = to
	if reason != "" {
		job.Reason = reason
	}
	return nil
}

// setResolved records the scanned pair and derived output path.
func (b *Batch) setResolved(id, videoPath, subtitlePath, outputPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job := b.find(id)
	if job == nil {
		return ErrJobNotFound
	}
	job.VideoPath = videoPath
	job.SubtitlePath = subtitlePath
	job.OutputPath = outputPath
	return nil
}

// appendLog records one captured output line for the job.
func (b *Batch) appendLog(id, line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job := b.find(id)
	if job == nil {
		return ErrJobNotFound
	}
	job.LogLines = append(job.LogLines, line)
	return nil
}

// find locates a job by ID. Callers hold the lock.
func (b *Batch) find(id string) *domain.FolderJob {
	for _, job := range b.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

// snapshot copies a job so readers never share log slices with writers.
func snapshot(job *domain.FolderJob) domain.FolderJob {
	out := *job
	if len(job.LogLines) > 0 {
		out.LogLines = append([]string(nil), job.LogLines...)
	}
	return out
}
