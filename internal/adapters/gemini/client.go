// internal/adapters/gemini/client.go
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"review_analysis/internal/adapters/observability"
	"review_analysis/internal/domain"
)

const service = "gemini"

type Config struct {
	BaseURL        string
	Model          string
	APIKey         string
	RPS            int
	Timeout        time.Duration // per attempt
	MaxRetryTime   time.Duration // negative disables retries
	InitialBackoff time.Duration
}

type Client struct {
	cfg Config
	hc  *http.Client
	rl  *rate.Limiter
}

// New never fails: an empty key yields a client whose calls return domain.ErrNotConfigured.
func New(cfg Config) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetryTime == 0 {
		cfg.MaxRetryTime = 45 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
		rl:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
	}
}

func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// ---- wire types ----

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature"`
	TopK            *int     `json:"topK,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type Candidate struct {
	Content      *content `json:"content"`
	FinishReason string   `json:"finishReason"`
	AvgLogprobs  float64  `json:"avgLogprobs"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type GenerateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata"`
	ModelVersion  string         `json:"modelVersion"`
}

// Text is the first candidate's first part, "" when absent.
func (r GenerateResponse) Text() string {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// ---- public API ----

// Generate sends one prompt to generateContent. Transport errors, 429 and 5xx are retried
// within cfg.MaxRetryTime, or gc.MaxRetryTime when set; every other non-2xx is returned
// at once as *domain.ExternalAPIError with the body verbatim.
func (c *Client) Generate(ctx context.Context, prompt string, gc domain.GenerationConfig) (string, error) {
	if !c.Configured() {
		return "", domain.ErrNotConfigured
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     gc.Temperature,
			TopK:            gc.TopK,
			TopP:            gc.TopP,
			MaxOutputTokens: gc.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	log.Debug().Int("prompt_len", len(prompt)).Int("payload_len", len(body)).Msg("gemini request")

	window := c.cfg.MaxRetryTime
	if gc.MaxRetryTime != 0 {
		window = gc.MaxRetryTime
	}
	retrying := window > 0

	var out GenerateResponse
	op := func() error {
		if err := c.rl.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return c.post(ctx, body, &out, retrying)
	}

	if retrying {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.cfg.InitialBackoff
		b.MaxElapsedTime = window

		notify := func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("retry_in", wait).Msg("gemini call failed, retrying")
		}
		err = backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	} else {
		err = op()
	}
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) {
			return "", apiErr
		}
		return "", &domain.ExternalAPIError{Service: service, Err: err}
	}
	return out.Text(), nil
}

// ---- internals ----

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, url.QueryEscape(c.cfg.APIKey))
}

func (c *Client) post(ctx context.Context, body []byte, out *GenerateResponse, retrying bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "review-analysis/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, "generateContent", 0, time.Since(start))
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		// the url carries the key; keep it out of logs and errors
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return &domain.ExternalAPIError{Service: service, Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, "generateContent", resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &domain.ExternalAPIError{Service: service, StatusCode: 0, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(&domain.ExternalAPIError{Service: service, Err: fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)})
		}
		return nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		apiErr := &domain.ExternalAPIError{Service: service, StatusCode: resp.StatusCode, Body: string(raw)}
		log.Error().Int("status", resp.StatusCode).Str("error", string(raw)).Msg("gemini api error")
		// Prefer server-provided Retry-After on top of the exponential delay.
		if !retrying {
			return apiErr
		}
		if wait := retryAfter(resp); wait > 0 && !sleepCtx(ctx, min(wait, 10*time.Second)) {
			return backoff.Permanent(apiErr)
		}
		return apiErr

	default:
		log.Error().Int("status", resp.StatusCode).Str("error", string(raw)).Msg("gemini api error")
		return backoff.Permanent(&domain.ExternalAPIError{Service: service, StatusCode: resp.StatusCode, Body: string(raw)})
	}
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
