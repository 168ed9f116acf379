// CLAUDE:SUMMARY Batch scheduler: scope window, 2000-char batch assembly, delimiter flush with fallback and warnings.
package workbench

import (
	"context"
	"log/slog"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/tradbench/docpipe"
	"github.com/hazyhaar/tradbench/events"
	"github.com/hazyhaar/tradbench/translate"
)

// delimiterSplit tolerates whatever whitespace the model put around the
// echoed markers.
var delimiterSplit = regexp.MustCompile(`\s*\|\|\|\s*`)

type scheduler struct {
	store      *Store
	translator Translator
	bus        *events.Bus
	logger     *slog.Logger

	maxBatchChars int
	flushDelay    time.Duration
}

// scopeIndices returns the positions (into job.Segments) of the segments a
// run must translate, in ascending index order.
//
// With a selected range the window is widened by one page on each side,
// clamped to the document, so sentences crossing the requested boundary keep
// their context. Unpaged segments are excluded in range mode because they
// cannot be attributed to any page.
func scopeIndices(job *Job, r *docpipe.PageRange) []int {
	if r == nil {
		out := make([]int, len(job.Segments))
		for i := range job.Segments {
			out[i] = i
		}
		return out
	}

	lo := max(1, r.Start-1)
	hi := r.End + 1
	if job.PageCount > 0 {
		hi = min(job.PageCount, hi)
	}

	var out []int
	for i, s := range job.Segments {
		if s.PageNumber >= lo && s.PageNumber <= hi {
			out = append(out, i)
		}
	}
	return out
}

// assembleBatches groups scope positions in order, closing a batch as soon as
// its accumulated original text reaches maxChars.
func assembleBatches(job *Job, scope []int, maxChars int) [][]int {
	var batches [][]int
	var cur []int
	chars := 0

	for _, pos := range scope {
		cur = append(cur, pos)
		chars += utf8.RuneCountInString(job.Segments[pos].Original)
		if chars >= maxChars {
			batches = append(batches, cur)
			cur = nil
			chars = 0
		}
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// run translates one job end to end. Every store write checks the job still
// exists; a deleted job silently ends the run with no further events.
func (sc *scheduler) run(ctx context.Context, jobID string, r *docpipe.PageRange) {
	job, ok := sc.store.Update(jobID, func(j *Job) {
		j.Status = JobProcessing
		j.Progress = 0
	})
	if !ok {
		return // deleted while queued
	}

	scope := scopeIndices(job, r)
	if len(scope) == 0 {
		sc.finish(jobID)
		return
	}

	batches := assembleBatches(job, scope, sc.maxBatchChars)
	sc.logger.Info("scheduler: job started",
		"job_id", jobID, "segments", len(scope), "batches", len(batches))

	done := 0
	for _, batch := range batches {
		if ctx.Err() != nil {
			return
		}
		// Spacing between provider calls.
		if sc.flushDelay > 0 {
			if err := sleepCtx(ctx, sc.flushDelay); err != nil {
				return
			}
		}
		if !sc.flush(ctx, jobID, job, batch) {
			return // job deleted mid-batch
		}
		done += len(batch)
		progress := (200*done + len(scope)) / (2 * len(scope))
		snap, ok := sc.store.Update(jobID, func(j *Job) {
			if progress > j.Progress {
				j.Progress = progress
			}
		})
		if !ok {
			return
		}
		sc.bus.Publish(events.Event{
			Type:     events.TypeFileProgress,
			JobID:    jobID,
			Progress: snap.Progress,
			Status:   string(JobProcessing),
			Range:    r,
		})
	}

	sc.finish(jobID)
}

// flush translates one batch. Returns false only when the job disappeared.
func (sc *scheduler) flush(ctx context.Context, jobID string, job *Job, batch []int) bool {
	_, ok := sc.store.Update(jobID, func(j *Job) {
		for _, pos := range batch {
			j.Segments[pos].Status = docpipe.SegmentTranslating
		}
	})
	if !ok {
		return false
	}
	for _, pos := range batch {
		s := job.Segments[pos]
		sc.bus.Publish(events.Event{
			Type:         events.TypeSegmentUpdate,
			JobID:        jobID,
			SegmentID:    s.ID,
			SegmentIndex: s.Index,
			Translating:  true,
		})
	}

	originals := make([]string, len(batch))
	for i, pos := range batch {
		originals[i] = job.Segments[pos].Original
	}
	joined := joinBatch(originals)

	translated, err := sc.translator.Translate(ctx, joined, job.TargetLang)
	if err != nil {
		sc.logger.Warn("scheduler: batch failed",
			"job_id", jobID, "segments", len(batch), "error", err)
		return sc.failBatch(jobID, job, batch, err.Error())
	}

	parts := delimiterSplit.Split(translated, -1)
	if len(parts) != len(batch) {
		sc.logger.Warn("scheduler: delimiter count mismatch",
			"job_id", jobID, "want", len(batch), "got", len(parts))
	}

	snap, ok := sc.store.Update(jobID, func(j *Job) {
		for i, pos := range batch {
			s := j.Segments[pos]
			if i < len(parts) && parts[i] != "" {
				s.Translated = parts[i]
			} else {
				// Model dropped or blanked this part; keep the original so
				// reassembly never produces holes.
				s.Translated = s.Original
			}
			s.Status = docpipe.SegmentCompleted
		}
	})
	if !ok {
		return false
	}
	for _, pos := range batch {
		s := snap.Segments[pos]
		sc.bus.Publish(events.Event{
			Type:         events.TypeSegmentUpdate,
			JobID:        jobID,
			SegmentID:    s.ID,
			SegmentIndex: s.Index,
			Text:         s.Translated,
		})
	}
	return true
}

func (sc *scheduler) failBatch(jobID string, job *Job, batch []int, msg string) bool {
	snap, ok := sc.store.Update(jobID, func(j *Job) {
		for _, pos := range batch {
			s := j.Segments[pos]
			s.Status = docpipe.SegmentWarning
			s.WarningMessage = msg
		}
	})
	if !ok {
		return false
	}
	for _, pos := range batch {
		s := snap.Segments[pos]
		sc.bus.Publish(events.Event{
			Type:         events.TypeSegmentWarning,
			JobID:        jobID,
			SegmentID:    s.ID,
			SegmentIndex: s.Index,
			Message:      s.WarningMessage,
		})
	}
	return true
}

func (sc *scheduler) finish(jobID string) {
	snap, ok := sc.store.Update(jobID, func(j *Job) {
		j.Status = JobCompleted
		j.Progress = 100
	})
	if !ok {
		return
	}
	sc.logger.Info("scheduler: job completed", "job_id", jobID)
	sc.bus.Publish(events.Event{
		Type:  events.TypeFileComplete,
		JobID: jobID,
		Job:   snap,
	})
}

func joinBatch(originals []string) string {
	if len(originals) == 1 {
		return originals[0]
	}
	joined := originals[0]
	for _, o := range originals[1:] {
		joined += translate.Delimiter + o
	}
	return joined
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
