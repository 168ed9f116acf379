// CLAUDE:SUMMARY Workbench facade: upload, start-processing and download boundaries over store, queue and scheduler.
// Package workbench ties the translation pipeline together: it owns the job
// store, computes batch scope, drives the FIFO job queue and publishes
// lifecycle events.
//
// Exactly one queue consumer runs per Workbench, so jobs are processed one at
// a time in first-queued order and only one goroutine ever mutates a given
// job's segments.
package workbench

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/tradbench/dbopen"
	"github.com/hazyhaar/tradbench/docpipe"
	"github.com/hazyhaar/tradbench/events"
	"github.com/hazyhaar/tradbench/idgen"
	"github.com/hazyhaar/tradbench/jobqueue"
	"github.com/hazyhaar/tradbench/reassemble"
)

var (
	// ErrJobNotFound reports an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotIdle reports a start-processing request on a job that already ran
	// or is queued.
	ErrNotIdle = errors.New("job is not idle")
)

// Translator is the batch translation dependency.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Config configures a Workbench.
type Config struct {
	// Pipeline configures document decomposition.
	Pipeline docpipe.Config `yaml:"pipeline"`
	// MaxBatchChars closes a batch once its original text reaches this many
	// characters. Default: 2000.
	MaxBatchChars int `yaml:"max_batch_chars"`
	// FlushDelay spaces provider calls. Default: 500ms.
	FlushDelay time.Duration `yaml:"flush_delay"`
	// QueueDSN is the SQLite DSN of the job queue. Default ":memory:"; job
	// state never outlives the process.
	QueueDSN string `yaml:"queue_dsn"`
	// Queue tunes the claim loop.
	Queue jobqueue.Options `yaml:"-"`

	// Translator performs the actual translation calls. Required.
	Translator Translator `yaml:"-"`
	// Bus receives lifecycle events. Default: a fresh bus.
	Bus *events.Bus `yaml:"-"`
	// JobIDs generates job identifiers. Default: "job_" + UUIDv7.
	JobIDs idgen.Generator `yaml:"-"`
	// Logger overrides slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxBatchChars <= 0 {
		c.MaxBatchChars = 2000
	}
	if c.FlushDelay < 0 {
		c.FlushDelay = 0
	} else if c.FlushDelay == 0 {
		c.FlushDelay = 500 * time.Millisecond
	}
	if c.QueueDSN == "" {
		c.QueueDSN = ":memory:"
	}
	if c.Bus == nil {
		c.Bus = events.NewBus(0)
	}
	if c.JobIDs == nil {
		c.JobIDs = idgen.Prefixed("job_", idgen.Default)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Workbench is the top-level pipeline facade.
type Workbench struct {
	cfg    Config
	pipe   *docpipe.Pipeline
	store  *Store
	db     *sql.DB
	queue  *jobqueue.Q
	bus    *events.Bus
	sched  *scheduler
	logger *slog.Logger
}

// New creates a Workbench and its backing queue database.
func New(cfg Config) (*Workbench, error) {
	cfg.defaults()
	if cfg.Translator == nil {
		return nil, errors.New("workbench: Translator is required")
	}

	db, err := dbopen.Open(cfg.QueueDSN, dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("workbench: open queue db: %w", err)
	}
	q := jobqueue.New(db, cfg.Queue)
	if err := q.EnsureTable(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("workbench: queue schema: %w", err)
	}

	store := NewStore()
	wb := &Workbench{
		cfg:    cfg,
		pipe:   docpipe.New(cfg.Pipeline),
		store:  store,
		db:     db,
		queue:  q,
		bus:    cfg.Bus,
		logger: cfg.Logger,
		sched: &scheduler{
			store:         store,
			translator:    cfg.Translator,
			bus:           cfg.Bus,
			logger:        cfg.Logger,
			maxBatchChars: cfg.MaxBatchChars,
			flushDelay:    cfg.FlushDelay,
		},
	}
	return wb, nil
}

// Run drives the queue consumer until ctx is cancelled.
func (wb *Workbench) Run(ctx context.Context) {
	wb.queue.Run(ctx, wb.handleEntry)
}

// Close releases the queue database.
func (wb *Workbench) Close() error {
	return wb.db.Close()
}

// Bus exposes the event bus for subscribers.
func (wb *Workbench) Bus() *events.Bus { return wb.bus }

// queuePayload is the serialized start-processing request.
type queuePayload struct {
	Range *docpipe.PageRange `json:"range,omitempty"`
}

func (wb *Workbench) handleEntry(ctx context.Context, e *jobqueue.Entry) error {
	var p queuePayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("workbench: decode queue payload: %w", err)
		}
	}

	wb.sched.run(ctx, e.JobID, p.Range)

	// The run above was the only active job or left others behind; once
	// nothing is queued or processing the whole batch is done.
	if !wb.store.AnyActive() {
		wb.bus.Publish(events.Event{Type: events.TypeBatchComplete})
	}
	return nil
}

// Upload decomposes a document and registers it as an idle job. Validation
// failures (oversized file, scanned PDF) are returned to the caller and no
// job is created. Parse failures inside an accepted file produce a job with
// an embedded error marker and no segments, so one bad file never blocks a
// multi-file upload.
func (wb *Workbench) Upload(ctx context.Context, name string, data []byte, sourceLang, targetLang string) (*Job, error) {
	format := wb.pipe.Detect(name)

	doc, err := wb.pipe.Decompose(name, data)
	if err != nil {
		if errors.Is(err, docpipe.ErrRejected) {
			return nil, err
		}
		wb.logger.Warn("workbench: decompose failed", "name", name, "error", err)
		doc = docpipe.ErrorDocument(name, format, err)
	}

	segs := wb.pipe.Segment(doc)
	html := docpipe.RenderHTML(doc)

	status := JobIdle
	if doc.Err != "" {
		status = JobError
	}
	job := &Job{
		ID:          wb.cfg.JobIDs(),
		Name:        name,
		Size:        int64(len(data)),
		ContentType: reassemble.MIME(format),
		Format:      format,
		Status:      status,
		Segments:    segs,
		HTMLContent: html,
		SourceLang:  sourceLang,
		TargetLang:  targetLang,
		PageCount:   doc.PageCount,
		ParseError:  doc.Err,
		CreatedAt:   time.Now().UTC(),
	}
	wb.store.Create(job, data)

	snap, _ := wb.store.Get(job.ID)
	wb.logger.Info("workbench: job created",
		"job_id", job.ID, "name", name, "format", format,
		"segments", len(segs), "pages", doc.PageCount)
	wb.bus.Publish(events.Event{Type: events.TypeFileReady, JobID: job.ID, Job: snap})
	return snap, nil
}

// StartProcessing validates the request and enqueues the job. The optional
// range is checked against the job's page count before any state changes; a
// job that is not idle is left untouched.
func (wb *Workbench) StartProcessing(ctx context.Context, jobID string, r *docpipe.PageRange) error {
	job, ok := wb.store.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != JobIdle {
		return fmt.Errorf("%w: status %s", ErrNotIdle, job.Status)
	}
	if r != nil {
		if err := r.Validate(job.PageCount); err != nil {
			return fmt.Errorf("workbench: invalid page range: %w", err)
		}
	}

	payload, err := json.Marshal(queuePayload{Range: r})
	if err != nil {
		return fmt.Errorf("workbench: encode queue payload: %w", err)
	}

	if _, ok := wb.store.Update(jobID, func(j *Job) {
		j.Status = JobQueued
		j.Progress = 0
		j.SelectedRange = r
	}); !ok {
		return ErrJobNotFound
	}

	if err := wb.queue.Publish(ctx, jobID, payload); err != nil {
		wb.store.Update(jobID, func(j *Job) { j.Status = JobIdle })
		return fmt.Errorf("workbench: enqueue: %w", err)
	}

	wb.logger.Info("workbench: job queued", "job_id", jobID, "range", r)
	wb.bus.Publish(events.Event{Type: events.TypeBatchInitialized, JobID: jobID, Range: r})
	return nil
}

// Download reassembles the translated document and returns bytes, MIME type
// and suggested file name. A reassembly failure leaves job state untouched.
func (wb *Workbench) Download(jobID string) (data []byte, mime, filename string, err error) {
	job, ok := wb.store.Get(jobID)
	if !ok {
		return nil, "", "", ErrJobNotFound
	}
	original, _ := wb.store.Original(jobID)

	data, mime, err = reassemble.Output(job.Name, job.Format, original, job.Segments)
	if err != nil {
		return nil, "", "", fmt.Errorf("workbench: reassemble: %w", err)
	}
	return data, mime, downloadName(job), nil
}

// downloadName builds {base}_{target}[_pages_{start}-{end}].{ext}.
func downloadName(job *Job) string {
	ext := filepath.Ext(job.Name)
	base := strings.TrimSuffix(job.Name, ext)
	if job.Format == docpipe.FormatPDF {
		ext = ".pdf" // always synthesized, never the original container
	}
	if ext == "" {
		ext = ".txt"
	}

	name := base
	if job.TargetLang != "" {
		name += "_" + job.TargetLang
	}
	if r := job.SelectedRange; r != nil {
		name += fmt.Sprintf("_pages_%d-%d", r.Start, r.End)
	}
	return name + ext
}

// Job returns a deep copy of one job.
func (wb *Workbench) Job(id string) (*Job, bool) {
	return wb.store.Get(id)
}

// Jobs lists all jobs in upload order.
func (wb *Workbench) Jobs() []*Job {
	return wb.store.List()
}

// DeleteJob removes a job, its file bytes and any queued run. A job already
// being processed finishes silently: the scheduler's next store write
// detects the deletion and stops.
func (wb *Workbench) DeleteJob(ctx context.Context, id string) error {
	if !wb.store.Delete(id) {
		return ErrJobNotFound
	}
	if err := wb.queue.Remove(ctx, id); err != nil {
		wb.logger.Warn("workbench: dequeue on delete failed", "job_id", id, "error", err)
	}
	wb.logger.Info("workbench: job deleted", "job_id", id)
	return nil
}

// ClearJobs removes every job.
func (wb *Workbench) ClearJobs(ctx context.Context) int {
	ids := wb.store.Clear()
	for _, id := range ids {
		if err := wb.queue.Remove(ctx, id); err != nil {
			wb.logger.Warn("workbench: dequeue on clear failed", "job_id", id, "error", err)
		}
	}
	wb.logger.Info("workbench: jobs cleared", "count", len(ids))
	return len(ids)
}
