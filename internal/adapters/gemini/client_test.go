package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"review_analysis/internal/adapters/gemini"
	"review_analysis/internal/domain"
)

func newClient(base, key string) *gemini.Client {
	return gemini.New(gemini.Config{
		BaseURL:        base,
		Model:          "gemini-test",
		APIKey:         key,
		RPS:            100, // high RPS for tests
		Timeout:        time.Second,
		MaxRetryTime:   2 * time.Second,
		InitialBackoff: 10 * time.Millisecond,
	})
}

const okBody = `{"candidates":[{"content":{"parts":[{"text":"analisi"}],"role":"model"},"finishReason":"STOP","avgLogprobs":-0.2}],"usageMetadata":{"promptTokenCount":3},"modelVersion":"gemini-test"}`

func TestGenerate_SendsContractAndExtractsText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(okBody))
	}))
	defer ts.Close()

	topK, topP := 40, 0.95
	text, err := newClient(ts.URL, "secret").Generate(context.Background(), "ciao",
		domain.GenerationConfig{Temperature: 0.7, TopK: &topK, TopP: &topP, MaxOutputTokens: 800})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if text != "analisi" {
		t.Fatalf("text = %q", text)
	}
	if gotPath != "/v1/models/gemini-test:generateContent" || gotKey != "secret" {
		t.Fatalf("unexpected request path=%s key=%s", gotPath, gotKey)
	}
	gc := gotBody["generationConfig"].(map[string]any)
	if gc["temperature"] != 0.7 || gc["topK"] != 40.0 || gc["topP"] != 0.95 || gc["maxOutputTokens"] != 800.0 {
		t.Fatalf("unexpected generationConfig: %+v", gc)
	}
	parts := gotBody["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	if parts[0].(map[string]any)["text"] != "ciao" {
		t.Fatalf("unexpected contents: %+v", gotBody["contents"])
	}
}

func TestGenerate_OmitsUnsetTopKTopP(t *testing.T) {
	var raw string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		_, _ = w.Write([]byte(okBody))
	}))
	defer ts.Close()

	if _, err := newClient(ts.URL, "k").Generate(context.Background(), "p",
		domain.GenerationConfig{Temperature: 0.4, MaxOutputTokens: 500}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if strings.Contains(raw, "topK") || strings.Contains(raw, "topP") {
		t.Fatalf("topK/topP should be omitted: %s", raw)
	}
}

func TestGenerate_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(503)
		default:
			_, _ = w.Write([]byte(okBody))
		}
	}))
	defer ts.Close()

	text, err := newClient(ts.URL, "k").Generate(context.Background(), "p", domain.GenerationConfig{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if text != "analisi" {
		t.Fatalf("text = %q", text)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestGenerate_ClientErrorIsPermanentAndVerbatim(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
	}))
	defer ts.Close()

	_, err := newClient(ts.URL, "k").Generate(context.Background(), "p", domain.GenerationConfig{})
	var apiErr *domain.ExternalAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ExternalAPIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Body != `{"error":{"message":"bad prompt"}}` {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if hits != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", hits)
	}
}

func TestGenerate_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	_, err := newClient(ts.URL, "k").Generate(context.Background(), "p", domain.GenerationConfig{})
	var apiErr *domain.ExternalAPIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 0 {
		t.Fatalf("expected decode ExternalAPIError, got %v", err)
	}
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse in chain, got %v", err)
	}
}

func TestGenerate_NoCandidatesIsEmptyText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer ts.Close()

	text, err := newClient(ts.URL, "k").Generate(context.Background(), "p", domain.GenerationConfig{})
	if err != nil || text != "" {
		t.Fatalf("want empty text and no error, got %q %v", text, err)
	}
}

func TestGenerate_MissingKeyNeverCallsNetwork(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	cl := newClient(ts.URL, "")
	_, err := cl.Generate(context.Background(), "p", domain.GenerationConfig{})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if cl.Configured() || atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("no request expected, got %d", hits)
	}
}

func TestGenerate_ServerErrorsExhaustRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := newClient(ts.URL, "k").Generate(ctx, "p", domain.GenerationConfig{})
	var apiErr *domain.ExternalAPIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 || apiErr.Body != "boom" {
		t.Fatalf("expected last 500 error, got %v", err)
	}
}

func TestGenerate_NegativeRetryWindowMakesOneAttempt(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer ts.Close()

	start := time.Now()
	_, err := newClient(ts.URL, "k").Generate(context.Background(), "p", domain.GenerationConfig{MaxRetryTime: -1})
	var apiErr *domain.ExternalAPIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 error, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Retry-After must not be honored without retries")
	}
}
