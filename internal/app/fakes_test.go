package app_test

import (
	"context"
	"errors"
	"sync"

	"review_analysis/internal/domain"
)

// ---- fakes ----

type fakeAnalyzer struct {
	mu    sync.Mutex
	raw   map[string]float64 // text -> raw score in -1..1
	fail  map[string]bool
	calls int
}

func (f *fakeAnalyzer) AnalyzeSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.Sentiment{}, err
	}
	if f.fail[text] {
		return domain.Sentiment{}, &domain.ExternalAPIError{Service: "language", StatusCode: 400, Body: "invalid document"}
	}
	return domain.Sentiment{Score: f.raw[text], Magnitude: 1}, nil
}

type genCall struct {
	prompt string
	cfg    domain.GenerationConfig
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []genCall
	respond func(prompt string) (string, error)
	hang    bool // block until ctx is done
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, genCall{prompt: prompt, cfg: cfg})
	f.mu.Unlock()
	if f.hang {
		<-ctx.Done()
		return "", &domain.ExternalAPIError{Service: "gemini", Err: ctx.Err()}
	}
	if f.respond == nil {
		return "ok", nil
	}
	return f.respond(prompt)
}

func (f *fakeGenerator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	sets   map[string]domain.ReviewSet
	putErr error
}

func (s *fakeStore) Get(ctx context.Context, id string) (domain.ReviewSet, bool, error) {
	set, ok := s.sets[id]
	if !ok {
		return domain.ReviewSet{}, false, nil
	}
	return set.Clone(), true, nil
}

func (s *fakeStore) Put(ctx context.Context, id string, set domain.ReviewSet) error {
	if s.putErr != nil {
		return s.putErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.sets == nil {
		s.sets = map[string]domain.ReviewSet{}
	}
	s.sets[id] = set.Clone()
	return nil
}

var errBrokenStore = errors.New("store down")

func score(v float64) *float64 { return &v }

func review(area, text string, s *float64) domain.Review {
	return domain.Review{Token: "t", Text: text, AreaAziendale: area, SentimentScore: s}
}
