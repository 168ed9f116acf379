// Package jobqueue implements the FIFO translation queue backed by SQLite.
//
// One row per start-processing request. Rows are invisible to the consumer
// for a visibility window after being claimed; the single scheduler worker
// acks a row when the job finishes (success or partial warnings) and nacks
// it only on claim-level failures. Because the consumer processes one claim
// at a time, jobs run strictly in first-queued order.
//
// The queue is pure SQLite — no external broker. The default database is
// in-memory: queued work never outlives the process.
//
// Expected schema (created automatically by EnsureTable):
//
//	CREATE TABLE IF NOT EXISTS translate_queue (
//	    id          TEXT PRIMARY KEY,           -- job ID
//	    payload     BLOB,                       -- JSON: selected page range
//	    visible_at  INTEGER NOT NULL DEFAULT 0, -- milliseconds since epoch
//	    created_at  INTEGER NOT NULL,
//	    attempts    INTEGER NOT NULL DEFAULT 0
//	);
package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// Entry is a claimed row: one job waiting for translation.
type Entry struct {
	JobID     string
	Payload   []byte
	CreatedAt time.Time
	Attempts  int
}

// Options configures queue behaviour.
type Options struct {
	// Visibility is how long a claimed entry stays invisible. A job whose
	// processing exceeds this window would be re-delivered, so it should
	// comfortably exceed the longest expected job. Default: 30m.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts in the Run loop.
	// Default: 250ms.
	PollInterval time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 30 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Q is the queue handle.
type Q struct {
	db   *sql.DB
	opts Options
}

// New creates a queue handle. Call EnsureTable once at startup, then Publish
// and Run.
func New(db *sql.DB, opts Options) *Q {
	opts.defaults()
	return &Q{db: db, opts: opts}
}

// EnsureTable creates the translate_queue table and index if they don't exist.
func (q *Q) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS translate_queue (
			id          TEXT PRIMARY KEY,
			payload     BLOB,
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_translate_queue_fifo ON translate_queue (visible_at, created_at);
	`)
	return err
}

// Publish enqueues a job that is immediately visible. Publishing the same
// job twice while it is still queued is a conflict surfaced to the caller.
func (q *Q) Publish(ctx context.Context, jobID string, payload []byte) error {
	now := time.Now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO translate_queue (id, payload, visible_at, created_at) VALUES (?,?,?,?)`,
		jobID, payload, now, now,
	)
	return err
}

// Claim atomically picks the first-queued visible entry, marks it invisible
// for the visibility window, and returns it. Returns nil, nil when no entry
// is available.
func (q *Q) Claim(ctx context.Context) (*Entry, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE translate_queue
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM translate_queue
			WHERE visible_at <= ?
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING id, payload, created_at, attempts`,
		hideUntil, now.UnixMilli(),
	)

	var e Entry
	var creAt int64
	err := row.Scan(&e.JobID, &e.Payload, &creAt, &e.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt = time.UnixMilli(creAt)
	return &e, nil
}

// Ack deletes a processed entry.
func (q *Q) Ack(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM translate_queue WHERE id = ?`, jobID,
	)
	return err
}

// Remove drops a queued entry without processing it (job deleted while
// waiting). Removing an unknown ID is a no-op.
func (q *Q) Remove(ctx context.Context, jobID string) error {
	return q.Ack(ctx, jobID)
}

// Len returns the number of entries (visible + claimed) in the queue.
func (q *Q) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM translate_queue`,
	).Scan(&n)
	return n, err
}

// Handler processes a claimed entry. The entry is acked regardless of the
// returned error: a failed translation run is reported through job state and
// events, not through redelivery.
type Handler func(ctx context.Context, e *Entry) error

// Run claims and processes entries one at a time in FIFO order. It blocks
// until ctx is cancelled.
func (q *Q) Run(ctx context.Context, handler Handler) {
	log := q.opts.Logger
	log.Info("jobqueue: consumer started", "poll", q.opts.PollInterval)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("jobqueue: consumer stopped")
			return
		case <-ticker.C:
			q.drain(ctx, handler, log)
		}
	}
}

func (q *Q) drain(ctx context.Context, handler Handler, log *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		e, err := q.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("jobqueue: claim failed", "error", err)
			}
			return
		}
		if e == nil {
			return // queue empty
		}

		if err := handler(ctx, e); err != nil {
			log.Warn("jobqueue: handler failed", "job_id", e.JobID, "error", err)
		}
		_ = q.Ack(context.WithoutCancel(ctx), e.JobID)
	}
}
