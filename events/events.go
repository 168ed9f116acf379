// Package events delivers typed lifecycle and progress messages from the
// translation pipeline to any number of observers (HTTP feed, tests).
//
// Delivery is at-least-once and ordered per job. Broadcasting iterates a
// snapshot of the subscriber list, so handlers may subscribe or unsubscribe
// from within a callback. A bounded replay buffer supports incremental reads
// for SSE catch-up.
package events

import (
	"sync"
	"time"
)

// Type classifies pipeline events.
type Type string

const (
	// TypeBatchInitialized fires when a processing run is accepted into the queue.
	TypeBatchInitialized Type = "batch-initialized"
	// TypeFileReady carries the full job snapshot after decomposition.
	TypeFileReady Type = "file-ready"
	// TypeFileProgress carries the progress percentage during processing.
	TypeFileProgress Type = "file-progress"
	// TypeSegmentUpdate carries one segment's translated text or in-flight marker.
	TypeSegmentUpdate Type = "segment-update"
	// TypeSegmentWarning carries a per-segment failure message.
	TypeSegmentWarning Type = "segment-warning"
	// TypeFileComplete carries the full job snapshot after processing.
	TypeFileComplete Type = "file-complete"
	// TypeBatchComplete fires when no job remains queued or processing.
	TypeBatchComplete Type = "batch-complete"
)

// Event is a sequenced pipeline message. Job snapshots are carried as opaque
// values so this package stays below the job model in the import graph.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	JobID     string    `json:"jobId,omitempty"`

	Job          any    `json:"job,omitempty"`          // file-ready, file-complete
	Progress     int    `json:"progress,omitempty"`     // file-progress
	Status       string `json:"status,omitempty"`       // file-progress (optional)
	Range        any    `json:"range,omitempty"`        // file-progress range echo
	SegmentID    string `json:"segmentId,omitempty"`    // segment-update, segment-warning
	SegmentIndex int    `json:"segmentIndex,omitempty"` // segment-update, segment-warning
	Text         string `json:"text,omitempty"`         // segment-update
	Translating  bool   `json:"translating,omitempty"`  // segment-update in-flight marker
	Message      string `json:"message,omitempty"`      // segment-warning
}

// Handler receives broadcast events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Bus fans events out to subscribers and keeps a bounded replay buffer.
type Bus struct {
	mu       sync.RWMutex
	nextSeq  int64
	nextSub  int
	subs     map[int]Handler
	maxKeep  int
	recent   []Event
}

// NewBus creates a Bus keeping up to maxKeep events for replay.
func NewBus(maxKeep int) *Bus {
	if maxKeep <= 0 {
		maxKeep = 500
	}
	return &Bus{
		subs:    make(map[int]Handler),
		maxKeep: maxKeep,
		recent:  make([]Event, 0, maxKeep),
	}
}

// Subscribe registers a handler and returns an unsubscribe function. Both
// are safe to call from within a handler.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish assigns sequence and timestamp, buffers the event, and broadcasts
// it to a snapshot of the current subscribers.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.recent = append(b.recent, event)
	if len(b.recent) > b.maxKeep {
		trim := len(b.recent) - b.maxKeep
		b.recent = append([]Event(nil), b.recent[trim:]...)
	}
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
	return event
}

// Since returns buffered events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.recent) == 0 {
		return nil
	}
	out := make([]Event, 0, len(b.recent))
	for _, e := range b.recent {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
