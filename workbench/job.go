// CLAUDE:SUMMARY Job model and the in-memory store holding jobs, segments and original file bytes.
package workbench

import (
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/tradbench/docpipe"
)

// JobStatus is the job lifecycle: idle → queued → processing → completed.
// Error is reserved for jobs whose upload produced no usable content.
type JobStatus string

const (
	JobIdle       JobStatus = "idle"
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Job is one uploaded document and its translation state. Segments are
// created once at upload and never reordered or resized; the scheduler only
// writes Translated, Status and WarningMessage on them.
type Job struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Size        int64              `json:"size"`
	ContentType string             `json:"contentType"`
	Format      docpipe.Format     `json:"format"`
	Status      JobStatus          `json:"status"`
	Progress    int                `json:"progress"`
	Segments    []*docpipe.Segment `json:"segments"`
	HTMLContent string             `json:"htmlContent"`
	SourceLang  string             `json:"sourceLang,omitempty"`
	TargetLang  string             `json:"targetLang"`
	PageCount   int                `json:"pageCount,omitempty"` // 0 = unpaged
	// SelectedRange is set when processing starts and is immutable for the
	// run. Nil means whole document.
	SelectedRange *docpipe.PageRange `json:"selectedRange,omitempty"`
	ParseError    string             `json:"parseError,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

func (j *Job) clone() *Job {
	c := *j
	if j.SelectedRange != nil {
		r := *j.SelectedRange
		c.SelectedRange = &r
	}
	c.Segments = make([]*docpipe.Segment, len(j.Segments))
	for i, s := range j.Segments {
		sc := *s
		c.Segments[i] = &sc
	}
	return &c
}

// Store is the in-memory job store. All reads return deep copies; all writes
// go through Update so exactly one mutation runs at a time per store. The
// original file bytes live alongside the job and are released on delete.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	files map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*Job),
		files: make(map[string][]byte),
	}
}

// Create stores a new job with its original file bytes.
func (s *Store) Create(job *Job, original []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.clone()
	s.files[job.ID] = original
}

// Get returns a deep copy of the job.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.clone(), true
}

// Original returns the uploaded file bytes for a job.
func (s *Store) Original(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[id]
	return b, ok
}

// Update applies mutate to the stored job under the write lock and returns a
// deep copy of the result. Updating a deleted job is a safe no-op reported
// via ok=false, which is how in-flight batches detect mid-run deletion.
func (s *Store) Update(id string, mutate func(*Job)) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	mutate(j)
	return j.clone(), true
}

// Delete removes a job and its file bytes.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	delete(s.files, id)
	return ok
}

// Clear removes every job and returns the removed IDs.
func (s *Store) Clear() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.jobs = make(map[string]*Job)
	s.files = make(map[string][]byte)
	return ids
}

// List returns deep copies of all jobs in upload order.
func (s *Store) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// AnyActive reports whether any job is queued or processing. Used to decide
// when the whole batch is done.
func (s *Store) AnyActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.Status == JobQueued || j.Status == JobProcessing {
			return true
		}
	}
	return false
}
