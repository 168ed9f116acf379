// Package translate calls an OpenAI-compatible chat-completions endpoint to
// translate plain-text fragments.
//
// Fragments are batched by the caller into one request joined with the
// Delimiter marker; the model is instructed to echo the marker so the reply
// can be split back into per-fragment translations. Transient provider
// failures (rate limits, quota exhaustion, temporary unavailability) are
// retried with exponential backoff.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// Delimiter separates fragments inside one batched request and one batched
// reply. The spaces around the bars keep tokenizers from gluing the marker to
// adjacent words.
const Delimiter = " ||| "

// Config configures a Client. Zero values pick production defaults.
type Config struct {
	// Endpoint is the chat-completions URL.
	// Default: https://api.openai.com/v1/chat/completions
	Endpoint string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Model names the model to request. Default: gpt-4o-mini.
	Model string
	// MaxAttempts bounds the total number of tries per request. Default: 5.
	MaxAttempts int
	// BackoffBase is the first retry delay, doubled on each subsequent retry.
	// Default: 10s.
	BackoffBase time.Duration
	// JitterMax is the upper bound of the random delay added to each backoff.
	// Default: 2s.
	JitterMax time.Duration
	// HTTPClient overrides the default client (30s-per-call timeout handled
	// via ctx by callers; the transport itself has no hard timeout because a
	// large batch can legitimately take minutes).
	HTTPClient *http.Client
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 10 * time.Second
	}
	if c.JitterMax <= 0 {
		c.JitterMax = 2 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client translates text batches. Safe for concurrent use.
type Client struct {
	cfg Config
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// Translate sends text to the model and returns the translated text. Empty
// or whitespace-only input is returned unchanged without a network call. The
// input may contain Delimiter markers; the model is instructed to preserve
// them.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if targetLang == "" {
		return "", errors.New("translate: target language required")
	}

	prompt := buildPrompt(targetLang)

	var out string
	err := c.withRetry(ctx, func() error {
		var err error
		out, err = c.complete(ctx, prompt, text)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func buildPrompt(targetLang string) string {
	var b strings.Builder
	b.WriteString("You are a professional translator. Translate the user's text into ")
	b.WriteString(targetLang)
	b.WriteString(".\n")
	b.WriteString("The text may contain several independent fragments separated by the marker \"" +
		strings.TrimSpace(Delimiter) + "\".\n")
	b.WriteString("Translate each fragment separately and keep the markers exactly where they are,\n")
	b.WriteString("so the reply contains the same number of fragments in the same order.\n")
	b.WriteString("Reply with the translation only. No explanations, no quotes, no added text.")
	return b.String()
}

// chat-completions wire types, request side.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("translate: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var parsed chatResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("translate: response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// APIError is a non-200 reply from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("translate: provider returned %d", e.Status)
	}
	return fmt.Sprintf("translate: provider returned %d: %s", e.Status, e.Message)
}

// retryable reports whether err is a transient provider failure worth another
// attempt: rate limiting, quota exhaustion, or temporary unavailability.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests || apiErr.Status == http.StatusServiceUnavailable {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") ||
			strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "overloaded")
	}
	return false
}

// withRetry runs fn up to MaxAttempts times, sleeping BackoffBase*2^n plus a
// random jitter (at most JitterMax) between attempts. Non-retryable errors
// and context cancellation stop immediately.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := c.cfg.BackoffBase

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		delay := backoff + rand.N(c.cfg.JitterMax)
		c.cfg.Logger.Warn("translate: transient failure, retrying",
			"attempt", attempt, "max_attempts", c.cfg.MaxAttempts,
			"delay", delay, "error", lastErr)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
		backoff *= 2
	}

	return fmt.Errorf("translate: giving up after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
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
