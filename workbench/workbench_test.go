package workbench

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/tradbench/docpipe"
	"github.com/hazyhaar/tradbench/events"
	"github.com/hazyhaar/tradbench/jobqueue"
	_ "modernc.org/sqlite"
)

func newTestWorkbench(t *testing.T, tr Translator) *Workbench {
	t.Helper()
	if tr == nil {
		tr = &stubTranslator{fn: func(_ context.Context, text, _ string) (string, error) {
			return text, nil
		}}
	}
	wb, err := New(Config{
		Translator: tr,
		FlushDelay: -1, // no pacing in tests
		Queue:      jobqueue.Options{PollInterval: 5 * time.Millisecond},
		Bus:        events.NewBus(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb
}

func waitForStatus(t *testing.T, wb *Workbench, id string, want JobStatus) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, ok := wb.Job(id)
		if ok && job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never reached %s (now %+v)", id, want, job)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUpload_TextFile(t *testing.T) {
	wb := newTestWorkbench(t, nil)

	var ready []string
	wb.Bus().Subscribe(func(e events.Event) {
		if e.Type == events.TypeFileReady {
			ready = append(ready, e.JobID)
		}
	})

	job, err := wb.Upload(context.Background(), "notes.txt", []byte("Bonjour le monde."), "French", "English")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != JobIdle {
		t.Errorf("status = %s, want idle", job.Status)
	}
	if len(job.Segments) != 1 || job.Segments[0].Original != "Bonjour le monde." {
		t.Errorf("segments = %+v", job.Segments)
	}
	if !strings.Contains(job.HTMLContent, "data-seg") {
		t.Errorf("html has no segment anchors: %s", job.HTMLContent)
	}
	if len(ready) != 1 || ready[0] != job.ID {
		t.Errorf("file-ready events = %v", ready)
	}
}

func TestUpload_OversizedRejectedWithoutJob(t *testing.T) {
	wb, err := New(Config{
		Translator: &stubTranslator{fn: func(_ context.Context, s, _ string) (string, error) { return s, nil }},
		Pipeline:   docpipe.Config{MaxFileSize: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	_, err = wb.Upload(context.Background(), "big.txt", []byte("way too large"), "", "English")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if len(wb.Jobs()) != 0 {
		t.Error("rejected upload must not create a job")
	}
}

func TestUpload_BrokenDocxKeepsErrorMarker(t *testing.T) {
	// WHAT: A corrupt container produces a job with an embedded error marker
	// and no segments instead of failing the upload.
	wb := newTestWorkbench(t, nil)

	job, err := wb.Upload(context.Background(), "broken.docx", []byte("not a zip"), "", "English")
	if err != nil {
		t.Fatal(err)
	}
	if job.ParseError == "" {
		t.Error("expected a parse error marker")
	}
	if len(job.Segments) != 0 {
		t.Errorf("got %d segments, want 0", len(job.Segments))
	}
	if job.Status != JobError {
		t.Errorf("status = %s, want error", job.Status)
	}
}

func TestStartProcessing_RequiresIdle(t *testing.T) {
	wb := newTestWorkbench(t, nil)
	ctx := context.Background()

	job, err := wb.Upload(ctx, "notes.txt", []byte("Bonjour."), "", "English")
	if err != nil {
		t.Fatal(err)
	}
	if err := wb.StartProcessing(ctx, job.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := wb.StartProcessing(ctx, job.ID, nil); err == nil {
		t.Fatal("second start must be rejected while queued")
	}
	if err := wb.StartProcessing(ctx, "job_missing", nil); err == nil {
		t.Fatal("unknown job must be rejected")
	}
}

func TestStartProcessing_ValidatesRangeBeforeMutation(t *testing.T) {
	wb := newTestWorkbench(t, nil)
	ctx := context.Background()

	job, err := wb.Upload(ctx, "notes.txt", []byte("Bonjour."), "", "English")
	if err != nil {
		t.Fatal(err)
	}
	if err := wb.StartProcessing(ctx, job.ID, &docpipe.PageRange{Start: 5, End: 2}); err == nil {
		t.Fatal("inverted range must be rejected")
	}
	// A text job has no page attribution, so any range would select nothing.
	if err := wb.StartProcessing(ctx, job.ID, &docpipe.PageRange{Start: 1, End: 1}); err == nil {
		t.Fatal("range on unpaged document must be rejected")
	}

	got, _ := wb.Job(job.ID)
	if got.Status != JobIdle || got.SelectedRange != nil {
		t.Errorf("rejected start mutated the job: %+v", got)
	}
}

func TestProcessing_FIFOAndBatchComplete(t *testing.T) {
	// WHAT: Two queued jobs complete in start order and batch-complete fires
	// once after the last one.
	wb := newTestWorkbench(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wb.Run(ctx)

	var mu sync.Mutex
	var completions []string
	var batchDone int
	wb.Bus().Subscribe(func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case events.TypeFileComplete:
			completions = append(completions, e.JobID)
		case events.TypeBatchComplete:
			batchDone++
		}
	})

	a, err := wb.Upload(ctx, "a.txt", []byte("Premier document."), "", "English")
	if err != nil {
		t.Fatal(err)
	}
	b, err := wb.Upload(ctx, "b.txt", []byte("Deuxième document."), "", "English")
	if err != nil {
		t.Fatal(err)
	}

	if err := wb.StartProcessing(ctx, a.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := wb.StartProcessing(ctx, b.ID, nil); err != nil {
		t.Fatal(err)
	}

	waitForStatus(t, wb, a.ID, JobCompleted)
	waitForStatus(t, wb, b.ID, JobCompleted)

	mu.Lock()
	defer mu.Unlock()
	if len(completions) != 2 || completions[0] != a.ID || completions[1] != b.ID {
		t.Errorf("completion order = %v, want [%s %s]", completions, a.ID, b.ID)
	}
	if batchDone == 0 {
		t.Error("batch-complete never fired")
	}
}

func TestDownload_TranslatedText(t *testing.T) {
	tr := &stubTranslator{fn: func(context.Context, string, string) (string, error) {
		return "Hello world.", nil
	}}
	wb := newTestWorkbench(t, tr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wb.Run(ctx)

	job, err := wb.Upload(ctx, "notes.txt", []byte("Bonjour le monde."), "", "en")
	if err != nil {
		t.Fatal(err)
	}
	if err := wb.StartProcessing(ctx, job.ID, nil); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, wb, job.ID, JobCompleted)

	data, mime, filename, err := wb.Download(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Hello world." {
		t.Errorf("data = %q", data)
	}
	if mime != "text/plain; charset=utf-8" {
		t.Errorf("mime = %s", mime)
	}
	if filename != "notes_en.txt" {
		t.Errorf("filename = %s", filename)
	}
}

func TestDownloadName(t *testing.T) {
	cases := []struct {
		job  Job
		want string
	}{
		{Job{Name: "doc.docx", Format: docpipe.FormatDocx, TargetLang: "en"}, "doc_en.docx"},
		{Job{Name: "doc.pdf", Format: docpipe.FormatPDF, TargetLang: "ja",
			SelectedRange: &docpipe.PageRange{Start: 2, End: 5}}, "doc_ja_pages_2-5.pdf"},
		{Job{Name: "notes", Format: docpipe.FormatText, TargetLang: "de"}, "notes_de.txt"},
	}
	for _, tc := range cases {
		if got := downloadName(&tc.job); got != tc.want {
			t.Errorf("downloadName(%s) = %s, want %s", tc.job.Name, got, tc.want)
		}
	}
}

func TestDeleteJob_RemovesQueuedRun(t *testing.T) {
	wb := newTestWorkbench(t, nil)
	ctx := context.Background()

	job, err := wb.Upload(ctx, "notes.txt", []byte("Bonjour."), "", "English")
	if err != nil {
		t.Fatal(err)
	}
	if err := wb.StartProcessing(ctx, job.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := wb.DeleteJob(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := wb.Job(job.ID); ok {
		t.Fatal("job still present")
	}
	if err := wb.DeleteJob(ctx, job.ID); err == nil {
		t.Fatal("double delete must report not found")
	}
}

func TestClearJobs(t *testing.T) {
	wb := newTestWorkbench(t, nil)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := wb.Upload(ctx, name, []byte("texte"), "", "English"); err != nil {
			t.Fatal(err)
		}
	}
	if n := wb.ClearJobs(ctx); n != 2 {
		t.Errorf("cleared %d, want 2", n)
	}
	if len(wb.Jobs()) != 0 {
		t.Error("jobs remain after clear")
	}
}
