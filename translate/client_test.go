package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// echoServer returns a chat-completions stub that replies with transform
// applied to the user message content.
func echoServer(t *testing.T, transform func(string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		user := req.Messages[len(req.Messages)-1].Content
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": transform(user)}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestTranslate_EmptyInputSkipsNetwork(t *testing.T) {
	// WHAT: Whitespace-only input comes back unchanged without hitting the
	// endpoint.
	// WHY: Blank segments must not waste quota or round trips, and their
	// spacing must survive.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	in := "  \n\t "
	got, err := c.Translate(context.Background(), in, "French")
	if err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Errorf("got %q, want input unchanged", got)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("endpoint called %d times, want 0", n)
	}
}

func TestTranslate_PreservesDelimiters(t *testing.T) {
	// WHAT: A batched input with markers comes back with the same fragment count.
	srv := echoServer(t, func(s string) string {
		return strings.ToUpper(s) // stand-in translation that keeps the markers
	})
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "test-model"})
	in := "bonjour" + Delimiter + "monde" + Delimiter + "salut"
	got, err := c.Translate(context.Background(), in, "English")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(got, "|||"); n != 2 {
		t.Errorf("reply has %d markers, want 2: %q", n, got)
	}
}

func TestTranslate_RetriesOnRateLimit(t *testing.T) {
	// WHAT: 429 replies are retried with doubling backoff; the third attempt
	// succeeds. The base is shrunk so the test measures spacing, not 10s waits.
	// WHY: Provider rate limits are routine and must not fail the batch.
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		n := len(stamps)
		mu.Unlock()
		if n <= 2 {
			http.Error(w, `{"error":{"message":"rate limit exceeded"}}`, http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	base := 40 * time.Millisecond
	c := New(Config{
		Endpoint:    srv.URL,
		BackoffBase: base,
		JitterMax:   time.Millisecond,
	})
	got, err := c.Translate(context.Background(), "bonjour", "English")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("endpoint called %d times, want 3", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < base {
		t.Errorf("first retry after %v, want at least %v", gap, base)
	}
	if gap := stamps[2].Sub(stamps[1]); gap < 2*base {
		t.Errorf("second retry after %v, want at least %v", gap, 2*base)
	}
}

func TestTranslate_GivesUpAfterMaxAttempts(t *testing.T) {
	// WHAT: Persistent 503 exhausts the attempt budget and surfaces the error.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{
		Endpoint:    srv.URL,
		MaxAttempts: 5,
		BackoffBase: time.Millisecond,
		JitterMax:   time.Millisecond,
	})
	_, err := c.Translate(context.Background(), "bonjour", "English")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "giving up after 5 attempts") {
		t.Errorf("error = %v", err)
	}
	if n := calls.Load(); n != 5 {
		t.Errorf("endpoint called %d times, want 5", n)
	}
}

func TestTranslate_ClientErrorIsNotRetried(t *testing.T) {
	// WHAT: A 400 reply fails immediately without retries.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"invalid model"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, BackoffBase: time.Millisecond})
	_, err := c.Translate(context.Background(), "bonjour", "English")
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("endpoint called %d times, want 1", n)
	}
}

func TestTranslate_QuotaMessageIsRetryable(t *testing.T) {
	// WHAT: A 403 whose message mentions quota is treated as transient.
	// WHY: Some providers report quota exhaustion with non-429 status codes.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"You exceeded your current quota"}}`, http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{
		Endpoint:    srv.URL,
		BackoffBase: time.Millisecond,
		JitterMax:   time.Millisecond,
	})
	got, err := c.Translate(context.Background(), "bonjour", "English")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("endpoint called %d times, want 2", n)
	}
}

func TestTranslate_MissingTargetLang(t *testing.T) {
	c := New(Config{Endpoint: "http://unused.invalid"})
	if _, err := c.Translate(context.Background(), "text", ""); err == nil {
		t.Fatal("expected error for empty target language")
	}
}
