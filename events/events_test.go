package events

import (
	"testing"
)

func TestPublish_SequencesMonotonically(t *testing.T) {
	b := NewBus(10)

	e1 := b.Publish(Event{Type: TypeBatchInitialized})
	e2 := b.Publish(Event{Type: TypeFileReady, JobID: "job_a"})

	if e1.Seq != 1 || e2.Seq != 2 {
		t.Errorf("seqs = %d, %d; want 1, 2", e1.Seq, e2.Seq)
	}
	if e1.Timestamp.IsZero() || e2.Timestamp.IsZero() {
		t.Error("timestamps not assigned")
	}
}

func TestSubscribe_ReceivesAfterRegistration(t *testing.T) {
	// WHAT: Subscribers see events published after they register, and stop
	// receiving after unsubscribe.
	b := NewBus(10)

	var got []Type
	unsub := b.Subscribe(func(e Event) { got = append(got, e.Type) })

	b.Publish(Event{Type: TypeFileProgress})
	b.Publish(Event{Type: TypeFileComplete})
	unsub()
	b.Publish(Event{Type: TypeBatchComplete})

	if len(got) != 2 || got[0] != TypeFileProgress || got[1] != TypeFileComplete {
		t.Errorf("got %v", got)
	}
}

func TestSubscribe_UnsubscribeInsideHandler(t *testing.T) {
	// WHY: SSE connections tear down from within the delivery path.
	b := NewBus(10)

	var n int
	var unsub func()
	unsub = b.Subscribe(func(Event) {
		n++
		unsub()
	})

	b.Publish(Event{Type: TypeFileProgress})
	b.Publish(Event{Type: TypeFileProgress})

	if n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}
}

func TestSince_ReplaysOnlyNewer(t *testing.T) {
	b := NewBus(10)

	b.Publish(Event{Type: TypeBatchInitialized})
	mid := b.Publish(Event{Type: TypeFileReady})
	b.Publish(Event{Type: TypeFileComplete})

	got := b.Since(mid.Seq)
	if len(got) != 1 || got[0].Type != TypeFileComplete {
		t.Errorf("got %v", got)
	}
	if all := b.Since(0); len(all) != 3 {
		t.Errorf("Since(0) returned %d events, want 3", len(all))
	}
}

func TestSince_BufferIsBounded(t *testing.T) {
	b := NewBus(3)

	for range 5 {
		b.Publish(Event{Type: TypeFileProgress})
	}

	got := b.Since(0)
	if len(got) != 3 {
		t.Fatalf("buffer holds %d events, want 3", len(got))
	}
	if got[0].Seq != 3 {
		t.Errorf("oldest retained seq = %d, want 3", got[0].Seq)
	}
}
