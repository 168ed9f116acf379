package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/tradbench/dbopen"
	_ "modernc.org/sqlite"
)

func newTestQueue(t *testing.T, opts Options) *Q {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := New(db, opts)
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatal(err)
	}
	return q
}

func TestClaim_FIFO(t *testing.T) {
	// WHAT: Entries are claimed in first-published order.
	// WHY: Jobs must be served in first-queued order per the scheduling contract.
	q := newTestQueue(t, Options{})
	ctx := context.Background()

	for _, id := range []string{"job_a", "job_b", "job_c"} {
		if err := q.Publish(ctx, id, nil); err != nil {
			t.Fatal(err)
		}
		// created_at has millisecond resolution; keep publishes distinct.
		time.Sleep(2 * time.Millisecond)
	}

	var got []string
	for range 3 {
		e, err := q.Claim(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if e == nil {
			t.Fatal("expected an entry")
		}
		got = append(got, e.JobID)
		if err := q.Ack(ctx, e.JobID); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"job_a", "job_b", "job_c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("claim order %v, want %v", got, want)
		}
	}
}

func TestClaim_EmptyQueue(t *testing.T) {
	q := newTestQueue(t, Options{})
	e, err := q.Claim(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		t.Fatalf("expected nil entry, got %+v", e)
	}
}

func TestClaim_InvisibleWhileProcessing(t *testing.T) {
	// WHAT: A claimed entry is not re-delivered inside the visibility window.
	// WHY: Only one scheduler run may mutate a job's segments at a time.
	q := newTestQueue(t, Options{Visibility: time.Minute})
	ctx := context.Background()

	if err := q.Publish(ctx, "job_a", []byte(`{"start":1,"end":2}`)); err != nil {
		t.Fatal(err)
	}

	first, err := q.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("first claim: %v %v", first, err)
	}
	if string(first.Payload) != `{"start":1,"end":2}` {
		t.Fatalf("payload = %q", first.Payload)
	}

	second, err := q.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second != nil {
		t.Fatalf("claimed invisible entry: %+v", second)
	}
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	q := newTestQueue(t, Options{})
	if err := q.Remove(context.Background(), "job_missing"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
}

func TestRun_ProcessesAndAcks(t *testing.T) {
	// WHAT: Run claims, invokes the handler, and acks even on handler error.
	// WHY: A failed run reports through job state, not through redelivery.
	q := newTestQueue(t, Options{PollInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Publish(ctx, "job_a", nil); err != nil {
		t.Fatal(err)
	}

	done := make(chan string, 1)
	go q.Run(ctx, func(_ context.Context, e *Entry) error {
		done <- e.JobID
		return context.DeadlineExceeded // arbitrary handler error
	})

	select {
	case id := <-done:
		if id != "job_a" {
			t.Fatalf("handled %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	// The entry must be acked despite the handler error.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := q.Len(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue length %d, want 0", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
