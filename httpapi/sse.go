// CLAUDE:SUMMARY SSE event feed with Last-Event-ID replay over the bounded bus buffer.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hazyhaar/tradbench/events"
)

// handleEvents streams pipeline events as Server-Sent Events. A reconnecting
// client sends Last-Event-ID and first receives the buffered events it
// missed, then live ones. A slow client drops events rather than blocking
// the pipeline.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var lastSeq int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if seq, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastSeq = seq
		}
	}

	ch := make(chan events.Event, 256)
	unsubscribe := s.wb.Bus().Subscribe(func(e events.Event) {
		select {
		case ch <- e:
		default: // client too slow, drop
		}
	})
	defer unsubscribe()

	for _, e := range s.wb.Bus().Since(lastSeq) {
		if !writeSSE(w, e) {
			return
		}
		lastSeq = e.Seq
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			if e.Seq <= lastSeq {
				continue // already replayed
			}
			if !writeSSE(w, e) {
				return
			}
			lastSeq = e.Seq
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e events.Event) bool {
	data, err := json.Marshal(e)
	if err != nil {
		return false
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Type, data)
	return err == nil
}
